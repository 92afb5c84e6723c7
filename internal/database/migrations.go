package database

// migrationsSQL contains all database migrations.
// Migrations are applied in order by version number.
// Each migration should be idempotent (safe to run multiple times).
var migrationsSQL = map[int]string{
	1: migrationV1DailyRecords,
	2: migrationV2JournalEntries,
}

// migrationV1DailyRecords stores one computed record per Gregorian date.
//
// Palaces, stems and pillars are stored as their Chinese symbols so the table
// reads the same as the API output. base_palace and year_branch_source are
// kept because the flow palaces depend on them.
const migrationV1DailyRecords = `
-- Migration 001: daily_records

CREATE TABLE IF NOT EXISTS daily_records (
    date TEXT PRIMARY KEY,                -- YYYY-MM-DD
    weekday TEXT NOT NULL,                -- 日 一 二 三 四 五 六

    lunar_date TEXT NOT NULL,             -- 十二月初二
    lunar_label TEXT NOT NULL,            -- 乙巳十二月初二
    lunar_month INTEGER NOT NULL CHECK (lunar_month BETWEEN 1 AND 12),
    lunar_day INTEGER NOT NULL CHECK (lunar_day BETWEEN 1 AND 30),
    leap_month INTEGER NOT NULL DEFAULT 0,

    day_stem TEXT NOT NULL,
    day_branch TEXT NOT NULL,
    year_pillar TEXT NOT NULL,
    bazi_year_pillar TEXT NOT NULL,
    month_pillar TEXT NOT NULL,
    bazi_month_pillar TEXT NOT NULL,

    solar_term TEXT NOT NULL,
    solar_term_transition TEXT,           -- only on a solar term date

    flow_month TEXT NOT NULL,             -- 正月 .. 冬月 臘月
    flow_month_palace TEXT NOT NULL,
    flow_day_palace TEXT NOT NULL,
    four_transformations TEXT NOT NULL,   -- e.g. 廉破武陽

    base_palace TEXT NOT NULL,
    year_branch TEXT NOT NULL,
    year_branch_source TEXT NOT NULL CHECK (year_branch_source IN ('natal', 'bazi', 'lunar')),

    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_daily_records_day_stem
    ON daily_records(day_stem);

CREATE INDEX IF NOT EXISTS idx_daily_records_flow_day_palace
    ON daily_records(flow_day_palace);
`

// migrationV2JournalEntries stores the daily self-assessment.
//
// A journal entry may exist for a date with no stored daily record; history
// queries left join from daily_records.
const migrationV2JournalEntries = `
-- Migration 002: journal_entries

CREATE TABLE IF NOT EXISTS journal_entries (
    date TEXT PRIMARY KEY,                -- YYYY-MM-DD

    score TEXT NOT NULL DEFAULT '普通' CHECK (score IN ('好', '普通', '不好')),

    -- Zi Wei ratings, 1 (low) to 3 (high)
    work INTEGER NOT NULL DEFAULT 2 CHECK (work BETWEEN 1 AND 3),
    health INTEGER NOT NULL DEFAULT 2 CHECK (health BETWEEN 1 AND 3),
    wealth INTEGER NOT NULL DEFAULT 2 CHECK (wealth BETWEEN 1 AND 3),
    energy INTEGER NOT NULL DEFAULT 2 CHECK (energy BETWEEN 1 AND 3),

    body_feeling TEXT NOT NULL DEFAULT '',      -- 八字 體感
    experience TEXT,                            -- 八字 體驗
    transformation_summary TEXT NOT NULL DEFAULT '',

    -- JSON array of emotion words, at most 3
    emotions TEXT NOT NULL DEFAULT '[]',

    notes TEXT,

    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

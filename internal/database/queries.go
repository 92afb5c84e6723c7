package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/zapponejosh/teller/internal/calendar"
)

// =============================================================================
// Helper Functions
// =============================================================================

// execer is satisfied by both *DB and *Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// parseTimestamp parses a timestamp from SQLite TEXT format.
// Returns nil if the value is empty or in an unknown format.
func parseTimestamp(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return &t
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite primary key or unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// marshalEmotions encodes the emotion list as a JSON array.
func marshalEmotions(emotions []string) (string, error) {
	if emotions == nil {
		emotions = []string{}
	}
	b, err := json.Marshal(emotions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalEmotions decodes a JSON array of emotions.
func unmarshalEmotions(s string) ([]string, error) {
	emotions := []string{}
	if s == "" {
		return emotions, nil
	}
	if err := json.Unmarshal([]byte(s), &emotions); err != nil {
		return nil, err
	}
	return emotions, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// =============================================================================
// Daily Record Queries
// =============================================================================

const dailyRecordColumns = `
	date, weekday,
	lunar_date, lunar_label, lunar_month, lunar_day, leap_month,
	day_stem, day_branch,
	year_pillar, bazi_year_pillar, month_pillar, bazi_month_pillar,
	solar_term, solar_term_transition,
	flow_month, flow_month_palace, flow_day_palace, four_transformations,
	base_palace, year_branch, year_branch_source,
	created_at, updated_at`

// dailyRecordRow holds the TEXT form of a daily_records row.
type dailyRecordRow struct {
	date, weekday                             string
	lunarDate, lunarLabel                     string
	lunarMonth, lunarDay                      int
	leapMonth                                 bool
	dayStem, dayBranch                        string
	yearPillar, baziYearPillar                string
	monthPillar, baziMonthPillar              string
	solarTerm                                 string
	transition                                sql.NullString
	flowMonth, flowMonthPalace, flowDayPalace string
	fourTransformations                       string
	basePalace, yearBranch, source            string
	createdAt, updatedAt                      sql.NullString
}

func (row *dailyRecordRow) dest() []any {
	return []any{
		&row.date, &row.weekday,
		&row.lunarDate, &row.lunarLabel, &row.lunarMonth, &row.lunarDay, &row.leapMonth,
		&row.dayStem, &row.dayBranch,
		&row.yearPillar, &row.baziYearPillar, &row.monthPillar, &row.baziMonthPillar,
		&row.solarTerm, &row.transition,
		&row.flowMonth, &row.flowMonthPalace, &row.flowDayPalace, &row.fourTransformations,
		&row.basePalace, &row.yearBranch, &row.source,
		&row.createdAt, &row.updatedAt,
	}
}

// record converts the stored symbols back into calendar types.
func (row *dailyRecordRow) record() (*StoredRecord, error) {
	var errs []error
	branch := func(s string) calendar.Branch {
		b, err := calendar.ParseBranch(s)
		if err != nil {
			errs = append(errs, err)
		}
		return b
	}
	pillar := func(s string) calendar.Pillar {
		p, err := calendar.ParsePillar(s)
		if err != nil {
			errs = append(errs, err)
		}
		return p
	}

	stem, err := calendar.ParseStem(row.dayStem)
	if err != nil {
		errs = append(errs, err)
	}

	rec := &StoredRecord{
		DailyRecord: calendar.DailyRecord{
			Date:                row.date,
			Weekday:             row.weekday,
			LunarDate:           row.lunarDate,
			LunarLabel:          row.lunarLabel,
			LunarMonth:          row.lunarMonth,
			LunarDay:            row.lunarDay,
			LeapMonth:           row.leapMonth,
			DayStem:             stem,
			DayBranch:           branch(row.dayBranch),
			YearPillar:          pillar(row.yearPillar),
			BaziYearPillar:      pillar(row.baziYearPillar),
			MonthPillar:         pillar(row.monthPillar),
			BaziMonthPillar:     pillar(row.baziMonthPillar),
			SolarTerm:           row.solarTerm,
			SolarTermTransition: stringPtr(row.transition),
			FlowMonth:           row.flowMonth,
			FlowMonthPalace:     branch(row.flowMonthPalace),
			FlowDayPalace:       branch(row.flowDayPalace),
			FourTransformations: row.fourTransformations,
			BasePalace:          branch(row.basePalace),
			YearBranch:          branch(row.yearBranch),
			YearBranchSource:    calendar.YearBranchSource(row.source),
		},
	}
	if t := parseTimestamp(row.createdAt); t != nil {
		rec.CreatedAt = *t
	}
	if t := parseTimestamp(row.updatedAt); t != nil {
		rec.UpdatedAt = *t
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("decode daily record %s: %w", row.date, errors.Join(errs...))
	}
	return rec, nil
}

func scanDailyRecord(s rowScanner) (*StoredRecord, error) {
	var row dailyRecordRow
	if err := s.Scan(row.dest()...); err != nil {
		return nil, err
	}
	return row.record()
}

// GetDailyRecord retrieves the stored record for a date (YYYY-MM-DD).
// Returns ErrNotFound if the date has not been generated.
func (db *DB) GetDailyRecord(ctx context.Context, date string) (*StoredRecord, error) {
	query := `SELECT ` + dailyRecordColumns + ` FROM daily_records WHERE date = ?`

	rec, err := scanDailyRecord(db.QueryRowContext(ctx, query, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query daily record: %w", err)
	}
	return rec, nil
}

// GetDailyRecordsByRange retrieves stored records for a date range (inclusive),
// oldest first. Returns an empty slice if none are stored.
func (db *DB) GetDailyRecordsByRange(ctx context.Context, startDate, endDate string) ([]StoredRecord, error) {
	query := `SELECT ` + dailyRecordColumns + `
		FROM daily_records
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`

	rows, err := db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("query daily records by range: %w", err)
	}
	defer rows.Close()

	records := []StoredRecord{}
	for rows.Next() {
		rec, err := scanDailyRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily record row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily record rows: %w", err)
	}

	return records, nil
}

const upsertDailyRecordSQL = `
	INSERT INTO daily_records (
		date, weekday,
		lunar_date, lunar_label, lunar_month, lunar_day, leap_month,
		day_stem, day_branch,
		year_pillar, bazi_year_pillar, month_pillar, bazi_month_pillar,
		solar_term, solar_term_transition,
		flow_month, flow_month_palace, flow_day_palace, four_transformations,
		base_palace, year_branch, year_branch_source,
		updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT(date) DO UPDATE SET
		weekday = excluded.weekday,
		lunar_date = excluded.lunar_date,
		lunar_label = excluded.lunar_label,
		lunar_month = excluded.lunar_month,
		lunar_day = excluded.lunar_day,
		leap_month = excluded.leap_month,
		day_stem = excluded.day_stem,
		day_branch = excluded.day_branch,
		year_pillar = excluded.year_pillar,
		bazi_year_pillar = excluded.bazi_year_pillar,
		month_pillar = excluded.month_pillar,
		bazi_month_pillar = excluded.bazi_month_pillar,
		solar_term = excluded.solar_term,
		solar_term_transition = excluded.solar_term_transition,
		flow_month = excluded.flow_month,
		flow_month_palace = excluded.flow_month_palace,
		flow_day_palace = excluded.flow_day_palace,
		four_transformations = excluded.four_transformations,
		base_palace = excluded.base_palace,
		year_branch = excluded.year_branch,
		year_branch_source = excluded.year_branch_source,
		updated_at = datetime('now')
`

func upsertDailyRecord(ctx context.Context, ex execer, rec *calendar.DailyRecord) error {
	_, err := ex.ExecContext(ctx, upsertDailyRecordSQL,
		rec.Date, rec.Weekday,
		rec.LunarDate, rec.LunarLabel, rec.LunarMonth, rec.LunarDay, rec.LeapMonth,
		rec.DayStem.String(), rec.DayBranch.String(),
		rec.YearPillar.String(), rec.BaziYearPillar.String(),
		rec.MonthPillar.String(), rec.BaziMonthPillar.String(),
		rec.SolarTerm, nullString(rec.SolarTermTransition),
		rec.FlowMonth, rec.FlowMonthPalace.String(), rec.FlowDayPalace.String(), rec.FourTransformations,
		rec.BasePalace.String(), rec.YearBranch.String(), string(rec.YearBranchSource),
	)
	if err != nil {
		return fmt.Errorf("upsert daily record %s: %w", rec.Date, err)
	}
	return nil
}

// UpsertDailyRecord inserts or replaces the record for its date.
// Idempotent: regenerating a date overwrites the previous values.
func (db *DB) UpsertDailyRecord(ctx context.Context, rec *calendar.DailyRecord) error {
	return upsertDailyRecord(ctx, db, rec)
}

// UpsertDailyRecords writes a batch of records in one transaction.
// Either every record is written or none is.
func (db *DB) UpsertDailyRecords(ctx context.Context, records []calendar.DailyRecord) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		for i := range records {
			if err := upsertDailyRecord(ctx, tx, &records[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDailyRecord removes the record for a date.
// Returns ErrNotFound if the date is not stored.
func (db *DB) DeleteDailyRecord(ctx context.Context, date string) error {
	return deleteByDate(ctx, db, "daily_records", date)
}

// CountDailyRecords returns how many dates are stored.
func (db *DB) CountDailyRecords(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count daily records: %w", err)
	}
	return n, nil
}

// GetRecordStats summarizes stored records and journal entries.
func (db *DB) GetRecordStats(ctx context.Context) (*RecordStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(MIN(date), ''),
			COALESCE(MAX(date), ''),
			(SELECT COUNT(*) FROM journal_entries),
			MAX(updated_at)
		FROM daily_records
	`

	var stats RecordStats
	var lastUpdated sql.NullString
	err := db.QueryRowContext(ctx, query).Scan(
		&stats.TotalDays,
		&stats.EarliestDate,
		&stats.LatestDate,
		&stats.JournalEntries,
		&lastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("query record stats: %w", err)
	}
	stats.LastUpdatedAt = parseTimestamp(lastUpdated)

	return &stats, nil
}

// MissingDates lists the dates in [start, end] with no stored record.
func (db *DB) MissingDates(ctx context.Context, start, end time.Time) ([]string, error) {
	stored := make(map[string]bool)

	rows, err := db.QueryContext(ctx,
		`SELECT date FROM daily_records WHERE date >= ? AND date <= ?`,
		calendar.FormatDate(start), calendar.FormatDate(end))
	if err != nil {
		return nil, fmt.Errorf("query stored dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan stored date: %w", err)
		}
		stored[date] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stored dates: %w", err)
	}

	missing := []string{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if date := calendar.FormatDate(d); !stored[date] {
			missing = append(missing, date)
		}
	}
	return missing, nil
}

// deleteByDate deletes the row keyed by date from table, a package constant.
func deleteByDate(ctx context.Context, ex execer, table, date string) error {
	result, err := ex.ExecContext(ctx, `DELETE FROM `+table+` WHERE date = ?`, date)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// Journal Queries
// =============================================================================

const journalColumns = `
	date, score, work, health, wealth, energy,
	body_feeling, experience, transformation_summary, emotions, notes,
	created_at, updated_at`

// journalRow holds the nullable scan targets of a journal_entries row. All
// fields are nullable so the same row works for LEFT JOIN results.
type journalRow struct {
	date, score                      sql.NullString
	work, health, wealth, energy     sql.NullInt64
	bodyFeeling, experience, summary sql.NullString
	emotions, notes                  sql.NullString
	createdAt, updatedAt             sql.NullString
}

func (row *journalRow) dest() []any {
	return []any{
		&row.date, &row.score, &row.work, &row.health, &row.wealth, &row.energy,
		&row.bodyFeeling, &row.experience, &row.summary, &row.emotions, &row.notes,
		&row.createdAt, &row.updatedAt,
	}
}

// entry returns nil when the row is the empty side of a join.
func (row *journalRow) entry() (*JournalEntry, error) {
	if !row.date.Valid {
		return nil, nil
	}

	emotions, err := unmarshalEmotions(row.emotions.String)
	if err != nil {
		return nil, fmt.Errorf("unmarshal emotions for %s: %w", row.date.String, err)
	}

	e := &JournalEntry{
		Date:                  row.date.String,
		Score:                 Score(row.score.String),
		Work:                  int(row.work.Int64),
		Health:                int(row.health.Int64),
		Wealth:                int(row.wealth.Int64),
		Energy:                int(row.energy.Int64),
		BodyFeeling:           row.bodyFeeling.String,
		Experience:            stringPtr(row.experience),
		TransformationSummary: row.summary.String,
		Emotions:              emotions,
		Notes:                 stringPtr(row.notes),
	}
	if t := parseTimestamp(row.createdAt); t != nil {
		e.CreatedAt = *t
	}
	if t := parseTimestamp(row.updatedAt); t != nil {
		e.UpdatedAt = *t
	}
	return e, nil
}

// GetJournalEntry retrieves the entry for a date.
// Returns ErrNotFound if there is none.
func (db *DB) GetJournalEntry(ctx context.Context, date string) (*JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal_entries WHERE date = ?`

	var row journalRow
	if err := db.QueryRowContext(ctx, query, date).Scan(row.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query journal entry: %w", err)
	}
	return row.entry()
}

// ListJournalEntries retrieves entries for a date range (inclusive), oldest first.
func (db *DB) ListJournalEntries(ctx context.Context, startDate, endDate string) ([]JournalEntry, error) {
	query := `SELECT ` + journalColumns + `
		FROM journal_entries
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`

	rows, err := db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var row journalRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e, err := row.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}

	return entries, nil
}

func journalArgs(e *JournalEntry) ([]any, error) {
	emotions, err := marshalEmotions(e.Emotions)
	if err != nil {
		return nil, fmt.Errorf("marshal emotions: %w", err)
	}
	return []any{
		e.Date, string(e.Score), e.Work, e.Health, e.Wealth, e.Energy,
		e.BodyFeeling, nullString(e.Experience), e.TransformationSummary, emotions, nullString(e.Notes),
	}, nil
}

const insertJournalSQL = `
	INSERT INTO journal_entries (
		date, score, work, health, wealth, energy,
		body_feeling, experience, transformation_summary, emotions, notes,
		updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`

// CreateJournalEntry inserts a new entry.
// Returns ErrDuplicate if the date already has one.
func (db *DB) CreateJournalEntry(ctx context.Context, e *JournalEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	args, err := journalArgs(e)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, insertJournalSQL, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create journal entry: %w", err)
	}
	return nil
}

const upsertJournalSQL = insertJournalSQL + `
	ON CONFLICT(date) DO UPDATE SET
		score = excluded.score,
		work = excluded.work,
		health = excluded.health,
		wealth = excluded.wealth,
		energy = excluded.energy,
		body_feeling = excluded.body_feeling,
		experience = excluded.experience,
		transformation_summary = excluded.transformation_summary,
		emotions = excluded.emotions,
		notes = excluded.notes,
		updated_at = datetime('now')`

func upsertJournalEntry(ctx context.Context, ex execer, e *JournalEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	args, err := journalArgs(e)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, upsertJournalSQL, args...); err != nil {
		return fmt.Errorf("upsert journal entry %s: %w", e.Date, err)
	}
	return nil
}

// UpsertJournalEntry inserts or replaces the entry for its date.
func (db *DB) UpsertJournalEntry(ctx context.Context, e *JournalEntry) error {
	return upsertJournalEntry(ctx, db, e)
}

// ImportJournalEntries upserts a batch of entries in one transaction.
// An invalid entry aborts the whole import.
func (db *DB) ImportJournalEntries(ctx context.Context, entries []JournalEntry) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		for i := range entries {
			if err := upsertJournalEntry(ctx, tx, &entries[i]); err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
		}
		return nil
	})
}

// DeleteJournalEntry removes the entry for a date.
// Returns ErrNotFound if there is none.
func (db *DB) DeleteJournalEntry(ctx context.Context, date string) error {
	return deleteByDate(ctx, db, "journal_entries", date)
}

// =============================================================================
// History
// =============================================================================

// GetHistory returns stored records in a date range (inclusive), oldest
// first, each with its journal entry when one exists.
func (db *DB) GetHistory(ctx context.Context, startDate, endDate string) ([]HistoryEntry, error) {
	query := `
		SELECT
			d.date, d.weekday,
			d.lunar_date, d.lunar_label, d.lunar_month, d.lunar_day, d.leap_month,
			d.day_stem, d.day_branch,
			d.year_pillar, d.bazi_year_pillar, d.month_pillar, d.bazi_month_pillar,
			d.solar_term, d.solar_term_transition,
			d.flow_month, d.flow_month_palace, d.flow_day_palace, d.four_transformations,
			d.base_palace, d.year_branch, d.year_branch_source,
			d.created_at, d.updated_at,
			j.date, j.score, j.work, j.health, j.wealth, j.energy,
			j.body_feeling, j.experience, j.transformation_summary, j.emotions, j.notes,
			j.created_at, j.updated_at
		FROM daily_records d
		LEFT JOIN journal_entries j ON j.date = d.date
		WHERE d.date >= ? AND d.date <= ?
		ORDER BY d.date ASC
	`

	rows, err := db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []HistoryEntry{}
	for rows.Next() {
		var rec dailyRecordRow
		var journal journalRow
		if err := rows.Scan(append(rec.dest(), journal.dest()...)...); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		stored, err := rec.record()
		if err != nil {
			return nil, err
		}
		entry, err := journal.entry()
		if err != nil {
			return nil, err
		}
		history = append(history, HistoryEntry{Record: *stored, Journal: entry})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return history, nil
}

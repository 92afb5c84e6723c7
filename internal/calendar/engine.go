package calendar

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Year branch source
// =============================================================================

// YearBranchSource selects which branch feeds the flow month palace formula.
//
// Three readings are in use and none has been shown to be definitive, so the
// choice is configuration, never hard-coded in the formula itself.
type YearBranchSource string

const (
	// YearBranchNatal uses the caller's base (natal) palace branch.
	YearBranchNatal YearBranchSource = "natal"

	// YearBranchBazi uses the branch of the BaZi year pillar, which turns at 立春.
	YearBranchBazi YearBranchSource = "bazi"

	// YearBranchLunar uses the branch of the lunar calendar year, which turns at the lunar new year.
	YearBranchLunar YearBranchSource = "lunar"
)

// ErrInvalidYearBranchSource is returned for an unknown YearBranchSource.
var ErrInvalidYearBranchSource = errors.New("invalid year branch source")

// ValidYearBranchSources returns all valid sources.
func ValidYearBranchSources() []YearBranchSource {
	return []YearBranchSource{YearBranchNatal, YearBranchBazi, YearBranchLunar}
}

// ParseYearBranchSource validates a source name. An empty string means natal.
func ParseYearBranchSource(s string) (YearBranchSource, error) {
	if s == "" {
		return YearBranchNatal, nil
	}
	src := YearBranchSource(s)
	if !src.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidYearBranchSource, s)
	}
	return src, nil
}

// IsValid checks if a source is one of the known values.
func (s YearBranchSource) IsValid() bool {
	for _, valid := range ValidYearBranchSources() {
		if s == valid {
			return true
		}
	}
	return false
}

// YearBranch picks the branch this source designates.
func (s YearBranchSource) YearBranch(basePalace Branch, fields LunarFields) Branch {
	switch s {
	case YearBranchBazi:
		return fields.BaziYearPillar.Branch
	case YearBranchLunar:
		return fields.LunarYearBranch()
	default:
		return basePalace
	}
}

// =============================================================================
// Daily record
// =============================================================================

// DailyRecord is the full set of derived fields for one Gregorian date.
type DailyRecord struct {
	Date       string `json:"date"`
	Weekday    string `json:"weekday"`
	LunarDate  string `json:"lunar_date"`  // 十二月初二
	LunarLabel string `json:"lunar_label"` // 乙巳十二月初二
	LunarMonth int    `json:"lunar_month"`
	LunarDay   int    `json:"lunar_day"`
	LeapMonth  bool   `json:"leap_month"`

	DayStem   Stem   `json:"day_stem"`
	DayBranch Branch `json:"day_branch"`

	YearPillar      Pillar `json:"year_pillar"`
	BaziYearPillar  Pillar `json:"bazi_year_pillar"`
	MonthPillar     Pillar `json:"month_pillar"`
	BaziMonthPillar Pillar `json:"bazi_month_pillar"`

	SolarTerm           string  `json:"solar_term"`
	SolarTermTransition *string `json:"solar_term_transition,omitempty"`

	FlowMonth           string `json:"flow_month"` // 臘月
	FlowMonthPalace     Branch `json:"flow_month_palace"`
	FlowDayPalace       Branch `json:"flow_day_palace"`
	FourTransformations string `json:"four_transformations"`

	BasePalace       Branch           `json:"base_palace"`
	YearBranch       Branch           `json:"year_branch"`
	YearBranchSource YearBranchSource `json:"year_branch_source"`
}

// =============================================================================
// Engine
// =============================================================================

// Engine assembles DailyRecords from a LunarResolver and lookup Tables.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	resolver LunarResolver
	tables   *Tables
	source   YearBranchSource
}

// NewEngine creates an engine. An empty source means natal.
func NewEngine(resolver LunarResolver, tables *Tables, source YearBranchSource) *Engine {
	if source == "" {
		source = YearBranchNatal
	}
	return &Engine{resolver: resolver, tables: tables, source: source}
}

// Tables returns the engine's lookup tables.
func (e *Engine) Tables() *Tables {
	return e.tables
}

// Source returns the configured year branch source.
func (e *Engine) Source() YearBranchSource {
	return e.source
}

// WithSource returns a copy of the engine using a different year branch source.
func (e *Engine) WithSource(source YearBranchSource) *Engine {
	c := *e
	if source != "" {
		c.source = source
	}
	return &c
}

// ComputeDailyRecord derives the full record for date. basePalace is the
// natal palace branch; it feeds the flow palace formula when the engine's
// source is natal and is reported on the record in every case.
func (e *Engine) ComputeDailyRecord(date time.Time, basePalace Branch) (*DailyRecord, error) {
	if !basePalace.IsValid() {
		return nil, fmt.Errorf("%w: base palace index %d", ErrInvalidBranch, int(basePalace))
	}

	d := DateOf(date)
	fields, err := e.resolver.Resolve(d)
	if err != nil {
		return nil, err
	}

	month := NormalizeLunarMonth(fields.LunarMonth)
	yearBranch := e.source.YearBranch(basePalace, fields)

	monthPalace, dayPalace, err := FlowPalaces(yearBranch, month, fields.LunarDay)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", FormatDate(d), err)
	}

	label, err := FormatLunarLabel(fields.YearPillar, fields.LunarMonth, fields.LunarDay)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", FormatDate(d), err)
	}

	flowMonth, err := FlowMonthName(month)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", FormatDate(d), err)
	}

	term, exact := e.currentSolarTerm(d, fields)

	var transition *string
	if exact {
		if prev, ok := e.tables.PreviousSolarTerm(term); ok {
			note := prev + "→" + term
			transition = &note
		}
	}

	return &DailyRecord{
		Date:                FormatDate(d),
		Weekday:             WeekdayLabel(d),
		LunarDate:           ShortLunarLabel(label),
		LunarLabel:          label,
		LunarMonth:          month,
		LunarDay:            fields.LunarDay,
		LeapMonth:           fields.IsLeapMonth(),
		DayStem:             fields.DayPillar.Stem,
		DayBranch:           fields.DayPillar.Branch,
		YearPillar:          fields.YearPillar,
		BaziYearPillar:      fields.BaziYearPillar,
		MonthPillar:         fields.MonthPillar,
		BaziMonthPillar:     fields.BaziMonthPillar,
		SolarTerm:           term,
		SolarTermTransition: transition,
		FlowMonth:           flowMonth,
		FlowMonthPalace:     monthPalace,
		FlowDayPalace:       dayPalace,
		FourTransformations: e.tables.FourTransformations(fields.DayPillar.Stem),
		BasePalace:          basePalace,
		YearBranch:          yearBranch,
		YearBranchSource:    e.source,
	}, nil
}

// CurrentSolarTerm returns the solar term in effect on date: the term of the
// date itself, else the latest earlier term of the same Gregorian year, else
// the first term of the table (小寒). It costs one resolver call.
func (e *Engine) CurrentSolarTerm(date time.Time) (string, error) {
	d := DateOf(date)
	fields, err := e.resolver.Resolve(d)
	if err != nil {
		return "", err
	}
	term, _ := e.currentSolarTerm(d, fields)
	return term, nil
}

// currentSolarTerm also reports whether d is itself a term date.
func (e *Engine) currentSolarTerm(d time.Time, fields LunarFields) (string, bool) {
	if fields.SolarTerm != "" {
		return e.canonicalTerm(fields.SolarTerm), true
	}
	if fields.PrevSolarTerm != "" && fields.PrevSolarTermDate.Year() == d.Year() {
		return e.canonicalTerm(fields.PrevSolarTerm), false
	}
	return e.tables.FirstSolarTerm(), false
}

func (e *Engine) canonicalTerm(name string) string {
	if canonical, ok := e.tables.CanonicalSolarTerm(name); ok {
		return canonical
	}
	return name
}

// ComputeRange computes records for every date from start to end inclusive.
// Dates are independent, so they are computed in parallel; the result is in
// date order. The first failure cancels the rest.
func (e *Engine) ComputeRange(ctx context.Context, start, end time.Time, basePalace Branch) ([]DailyRecord, error) {
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s is before start %s", FormatDate(end), FormatDate(start))
	}

	n := DaysBetween(start, end) + 1
	records := make([]DailyRecord, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := e.ComputeDailyRecord(date, basePalace)
			if err != nil {
				return err
			}
			records[i] = *rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

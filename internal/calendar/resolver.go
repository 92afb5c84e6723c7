package calendar

import (
	"fmt"
	"sync"
	"time"

	lunarcal "github.com/6tail/lunar-go/calendar"
)

// Supported Gregorian range of the resolver.
var (
	MinSupportedDate = time.Date(1900, time.January, 31, 0, 0, 0, 0, time.UTC)
	MaxSupportedDate = time.Date(2100, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// LunarFields is what a LunarResolver reports for one Gregorian date.
type LunarFields struct {
	// LunarMonth is 1..12, negated for a leap month.
	LunarMonth int
	LunarDay   int

	// YearPillar changes at the lunar new year; BaziYearPillar at 立春.
	YearPillar     Pillar
	BaziYearPillar Pillar

	// MonthPillar follows the lunar month; BaziMonthPillar follows the solar terms.
	MonthPillar     Pillar
	BaziMonthPillar Pillar

	DayPillar Pillar

	// SolarTerm is set only when the date itself is a solar term date.
	// The name is as reported by the resolver; see Tables.CanonicalSolarTerm.
	SolarTerm string

	// PrevSolarTerm is the latest term falling on or before the date, and
	// PrevSolarTermDate its calendar day. Empty when the resolver has none.
	PrevSolarTerm     string
	PrevSolarTermDate time.Time
}

// IsLeapMonth reports whether the lunar month is a leap month.
func (f LunarFields) IsLeapMonth() bool {
	return f.LunarMonth < 0
}

// LunarYearBranch is the branch of the lunar calendar year.
func (f LunarFields) LunarYearBranch() Branch {
	return f.YearPillar.Branch
}

// LunarResolver converts a Gregorian date into lunar calendar fields.
// Implementations must be safe for concurrent use.
type LunarResolver interface {
	Resolve(date time.Time) (LunarFields, error)
}

// LibraryResolver implements LunarResolver with github.com/6tail/lunar-go.
//
// The library memoizes the last lunar year in package state, so calls are
// serialized through mu. Each Resolve takes the lock once, previous solar
// term included.
type LibraryResolver struct {
	mu sync.Mutex
}

// NewLibraryResolver creates a resolver backed by the lunar-go library.
func NewLibraryResolver() *LibraryResolver {
	return &LibraryResolver{}
}

// Resolve converts date (its calendar day; the clock is ignored).
// Dates outside [MinSupportedDate, MaxSupportedDate] fail with ErrDateOutOfRange.
func (r *LibraryResolver) Resolve(date time.Time) (LunarFields, error) {
	d := DateOf(date)
	if d.Before(MinSupportedDate) || d.After(MaxSupportedDate) {
		return LunarFields{}, fmt.Errorf("%w: %s", ErrDateOutOfRange, FormatDate(d))
	}

	raw, err := r.convert(d)
	if err != nil {
		return LunarFields{}, err
	}
	return raw.fields(d)
}

// rawLunar holds the library's string output before validation.
type rawLunar struct {
	month, day                        int
	year, baziYear                    string
	monthPillar, baziMonth, dayPillar string
	jieQi                             string
	prevJieQi                         string
	prevJieQiDate                     time.Time
}

func (r *LibraryResolver) convert(d time.Time) (raw rawLunar, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The library panics on dates it cannot represent.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: %v", ErrDateOutOfRange, FormatDate(d), p)
		}
	}()

	l := lunarcal.NewSolarFromYmd(d.Year(), int(d.Month()), d.Day()).GetLunar()
	raw = rawLunar{
		month:       l.GetMonth(),
		day:         l.GetDay(),
		year:        l.GetYearInGanZhi(),
		baziYear:    l.GetYearInGanZhiByLiChun(),
		monthPillar: l.GetMonthInGanZhi(),
		baziMonth:   l.GetMonthInGanZhiExact(),
		dayPillar:   l.GetDayInGanZhi(),
		jieQi:       l.GetJieQi(),
	}
	if prev := l.GetPrevJieQiByWholeDay(true); prev != nil {
		s := prev.GetSolar()
		raw.prevJieQi = prev.GetName()
		raw.prevJieQiDate = time.Date(s.GetYear(), time.Month(s.GetMonth()), s.GetDay(), 0, 0, 0, 0, time.UTC)
	}
	return raw, nil
}

func (raw rawLunar) fields(d time.Time) (LunarFields, error) {
	f := LunarFields{
		LunarMonth: raw.month,
		LunarDay:   raw.day,
		SolarTerm:  raw.jieQi,

		PrevSolarTerm:     raw.prevJieQi,
		PrevSolarTermDate: raw.prevJieQiDate,
	}

	pillars := []struct {
		label string
		dst   *Pillar
	}{
		{raw.year, &f.YearPillar},
		{raw.baziYear, &f.BaziYearPillar},
		{raw.monthPillar, &f.MonthPillar},
		{raw.baziMonth, &f.BaziMonthPillar},
		{raw.dayPillar, &f.DayPillar},
	}
	for _, p := range pillars {
		v, err := ParsePillar(p.label)
		if err != nil {
			return LunarFields{}, fmt.Errorf("resolve %s: %w", FormatDate(d), err)
		}
		*p.dst = v
	}

	if err := validateLunarMonth(NormalizeLunarMonth(f.LunarMonth)); err != nil {
		return LunarFields{}, fmt.Errorf("resolve %s: %w", FormatDate(d), err)
	}
	if err := validateLunarDay(f.LunarDay); err != nil {
		return LunarFields{}, fmt.Errorf("resolve %s: %w", FormatDate(d), err)
	}
	return f, nil
}

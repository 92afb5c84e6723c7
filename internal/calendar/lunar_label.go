package calendar

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// lunarName pairs a label fragment with the number it denotes.
type lunarName struct {
	name  string
	value int
}

// lunarMonthNames is ordered so that longer names are tried first:
// "十一月" must never be read as "一月", nor "十二月" as "二月".
var lunarMonthNames = []lunarName{
	{"十二月", 12},
	{"十一月", 11},
	{"十月", 10},
	{"臘月", 12},
	{"腊月", 12},
	{"冬月", 11},
	{"正月", 1},
	{"一月", 1},
	{"二月", 2},
	{"三月", 3},
	{"四月", 4},
	{"五月", 5},
	{"六月", 6},
	{"七月", 7},
	{"八月", 8},
	{"九月", 9},
}

// lunarDayNames is ordered 20s/30s first, then the teens, then 初X.
var lunarDayNames = []lunarName{
	{"三十", 30},
	{"廿九", 29},
	{"廿八", 28},
	{"廿七", 27},
	{"廿六", 26},
	{"廿五", 25},
	{"廿四", 24},
	{"廿三", 23},
	{"廿二", 22},
	{"廿一", 21},
	{"二十", 20},
	{"十九", 19},
	{"十八", 18},
	{"十七", 17},
	{"十六", 16},
	{"十五", 15},
	{"十四", 14},
	{"十三", 13},
	{"十二", 12},
	{"十一", 11},
	{"初十", 10},
	{"初九", 9},
	{"初八", 8},
	{"初七", 7},
	{"初六", 6},
	{"初五", 5},
	{"初四", 4},
	{"初三", 3},
	{"初二", 2},
	{"初一", 1},
}

// Canonical names used when formatting. Index 0 is unused.
var (
	monthNumerals  = [13]string{"", "正", "二", "三", "四", "五", "六", "七", "八", "九", "十", "十一", "十二"}
	flowMonthNames = [13]string{"", "正月", "二月", "三月", "四月", "五月", "六月", "七月", "八月", "九月", "十月", "冬月", "臘月"}
	dayNumerals    = [31]string{
		"",
		"初一", "初二", "初三", "初四", "初五", "初六", "初七", "初八", "初九", "初十",
		"十一", "十二", "十三", "十四", "十五", "十六", "十七", "十八", "十九", "二十",
		"廿一", "廿二", "廿三", "廿四", "廿五", "廿六", "廿七", "廿八", "廿九", "三十",
	}
)

// leapMarkers prefix a leap month in a label.
const (
	leapMarker           = "閏"
	leapMarkerSimplified = "闰"
)

// findMonth returns the matched month and the byte offset just past its name.
func findMonth(label string) (month, end int, ok bool) {
	for _, m := range lunarMonthNames {
		if i := strings.Index(label, m.name); i != -1 {
			return m.value, i + len(m.name), true
		}
	}
	return 0, 0, false
}

// ParseLunarMonth extracts the lunar month (1..12) from a label such as "乙巳十一月十三".
func ParseLunarMonth(label string) (int, error) {
	month, _, ok := findMonth(label)
	if !ok {
		return 0, fmt.Errorf("%w: no month in %q", ErrUnparsableLunarLabel, label)
	}
	return month, nil
}

// ParseLunarDay extracts the lunar day (1..30) from a label such as "乙巳十一月十三".
// The month part is removed first so its characters cannot be read as a day.
func ParseLunarDay(label string) (int, error) {
	dayPart := label
	if _, end, ok := findMonth(label); ok {
		dayPart = label[end:]
	}

	for _, d := range lunarDayNames {
		if strings.Contains(dayPart, d.name) {
			return d.value, nil
		}
	}
	return 0, fmt.Errorf("%w: no day in %q", ErrUnparsableLunarLabel, label)
}

// ParseLunarLabel extracts both month and day.
func ParseLunarLabel(label string) (month, day int, err error) {
	month, err = ParseLunarMonth(label)
	if err != nil {
		return 0, 0, err
	}
	day, err = ParseLunarDay(label)
	if err != nil {
		return 0, 0, err
	}
	return month, day, nil
}

// IsLeapLabel reports whether the label marks a leap month.
func IsLeapLabel(label string) bool {
	return strings.Contains(label, leapMarker) || strings.Contains(label, leapMarkerSimplified)
}

// FormatLunarLabel builds the canonical label, e.g. "乙巳十二月初二" or "乙巳閏六月初一".
// The leap flag is carried by the sign of month, as the lunar library reports it.
func FormatLunarLabel(year Pillar, month, day int) (string, error) {
	leap := month < 0
	month = NormalizeLunarMonth(month)
	if err := validateLunarMonth(month); err != nil {
		return "", err
	}
	if err := validateLunarDay(day); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(year.String())
	if leap {
		b.WriteString(leapMarker)
	}
	b.WriteString(monthNumerals[month])
	b.WriteString("月")
	b.WriteString(dayNumerals[day])
	return b.String(), nil
}

// ShortLunarLabel drops a leading year pillar: "乙巳十二月初二" becomes "十二月初二".
// Labels without a pillar prefix are returned unchanged.
func ShortLunarLabel(label string) string {
	if utf8.RuneCountInString(label) <= 2 {
		return label
	}
	runes := []rune(label)
	if _, err := ParsePillar(string(runes[:2])); err != nil {
		return label
	}
	return string(runes[2:])
}

// FlowMonthName returns the traditional month name used for the Zi Wei flow month:
// 冬月 for month 11 and 臘月 for month 12, the plain numeral name otherwise.
func FlowMonthName(lunarMonth int) (string, error) {
	lunarMonth = NormalizeLunarMonth(lunarMonth)
	if err := validateLunarMonth(lunarMonth); err != nil {
		return "", err
	}
	return flowMonthNames[lunarMonth], nil
}

// NormalizeLunarMonth drops the leap-month sign the lunar library encodes in negative months.
func NormalizeLunarMonth(month int) int {
	if month < 0 {
		return -month
	}
	return month
}

func validateLunarMonth(month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: %d", ErrLunarMonthOutOfRange, month)
	}
	return nil
}

func validateLunarDay(day int) error {
	if day < 1 || day > 30 {
		return fmt.Errorf("%w: %d", ErrLunarDayOutOfRange, day)
	}
	return nil
}

package calendar

import "fmt"

// monthBranchOffset aligns lunar month 1 with 寅 (index 2).
const monthBranchOffset = 1

// MonthBranch returns the conventional branch of a lunar month:
// 1→寅, 2→卯, ... 11→子, 12→丑.
func MonthBranch(lunarMonth int) (Branch, error) {
	if err := validateLunarMonth(lunarMonth); err != nil {
		return 0, err
	}
	return BranchAt(lunarMonth + monthBranchOffset), nil
}

// FlowMonthPalace computes the flow month palace:
//
//	index(flowMonth) = (index(yearBranch) + index(monthBranch) + 2) mod 12
//
// yearBranch is always supplied by the caller. Which branch belongs there
// (natal palace, BaZi year branch or lunar year branch) is decided outside
// this function; see YearBranchSource.
func FlowMonthPalace(yearBranch Branch, lunarMonth int) (Branch, error) {
	if !yearBranch.IsValid() {
		return 0, fmt.Errorf("%w: year branch index %d", ErrInvalidBranch, int(yearBranch))
	}
	monthBranch, err := MonthBranch(lunarMonth)
	if err != nil {
		return 0, err
	}
	return BranchAt(yearBranch.Index() + monthBranch.Index() + 2), nil
}

// FlowDayPalace computes the flow day palace:
//
//	index(flowDay) = (index(monthPalace) + lunarDay - 1) mod 12
//
// Day 1 of a lunar month therefore lands on the month palace itself.
func FlowDayPalace(monthPalace Branch, lunarDay int) (Branch, error) {
	if !monthPalace.IsValid() {
		return 0, fmt.Errorf("%w: month palace index %d", ErrInvalidBranch, int(monthPalace))
	}
	if err := validateLunarDay(lunarDay); err != nil {
		return 0, err
	}
	return monthPalace.Add(lunarDay - 1), nil
}

// FlowPalaces runs the full pipeline and returns both the month and day palace.
func FlowPalaces(yearBranch Branch, lunarMonth, lunarDay int) (month, day Branch, err error) {
	month, err = FlowMonthPalace(yearBranch, lunarMonth)
	if err != nil {
		return 0, 0, fmt.Errorf("flow month palace: %w", err)
	}
	day, err = FlowDayPalace(month, lunarDay)
	if err != nil {
		return 0, 0, fmt.Errorf("flow day palace: %w", err)
	}
	return month, day, nil
}

// FlowDayPalaceFromLabel parses a lunar date label and runs the full pipeline.
func FlowDayPalaceFromLabel(yearBranch Branch, label string) (Branch, error) {
	month, day, err := ParseLunarLabel(label)
	if err != nil {
		return 0, err
	}
	_, palace, err := FlowPalaces(yearBranch, month, day)
	if err != nil {
		return 0, err
	}
	return palace, nil
}

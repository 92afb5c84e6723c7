// Package calendar converts Gregorian dates into lunar calendar fields,
// sexagenary pillars and the Zi Wei Dou Shu flow palace values derived from them.
//
// Everything in this package is a pure function of its inputs plus the
// read-only lookup tables in Tables. Nothing here logs, caches or retries.
package calendar

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Sentinel errors. Callers classify with errors.Is.
var (
	// ErrDateOutOfRange is returned when the lunar resolver cannot convert a date.
	ErrDateOutOfRange = errors.New("date out of supported range")

	// ErrUnparsableLunarLabel is returned when a lunar date label matches no month or day name.
	ErrUnparsableLunarLabel = errors.New("unparsable lunar label")

	// ErrInvalidBranch is returned for a symbol outside the 12 earthly branches.
	ErrInvalidBranch = errors.New("invalid earthly branch")

	// ErrInvalidStem is returned for a symbol outside the 10 heavenly stems.
	ErrInvalidStem = errors.New("invalid heavenly stem")

	// ErrLunarMonthOutOfRange is returned for a lunar month outside 1..12.
	ErrLunarMonthOutOfRange = errors.New("lunar month out of range")

	// ErrLunarDayOutOfRange is returned for a lunar day outside 1..30.
	ErrLunarDayOutOfRange = errors.New("lunar day out of range")
)

// =============================================================================
// Heavenly stems
// =============================================================================

// Stem is a heavenly stem, stored as its index 0..9 in the cycle 甲..癸.
type Stem int

// stemSymbols is the fixed stem order.
var stemSymbols = [10]string{"甲", "乙", "丙", "丁", "戊", "己", "庚", "辛", "壬", "癸"}

// Stems returns all ten stems in cycle order.
func Stems() []Stem {
	stems := make([]Stem, len(stemSymbols))
	for i := range stems {
		stems[i] = Stem(i)
	}
	return stems
}

// ParseStem converts a single-character symbol into a Stem.
func ParseStem(s string) (Stem, error) {
	for i, sym := range stemSymbols {
		if sym == s {
			return Stem(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStem, s)
}

// IsValid reports whether s is inside the closed stem set.
func (s Stem) IsValid() bool {
	return s >= 0 && int(s) < len(stemSymbols)
}

func (s Stem) String() string {
	if !s.IsValid() {
		return ""
	}
	return stemSymbols[s]
}

// MarshalText encodes the stem as its symbol.
func (s Stem) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: index %d", ErrInvalidStem, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a stem symbol.
func (s *Stem) UnmarshalText(b []byte) error {
	v, err := ParseStem(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// =============================================================================
// Earthly branches
// =============================================================================

// Branch is an earthly branch, stored as its index 0..11 on the 子..亥 ring.
// Palace and pillar arithmetic is always modulo 12 over this index.
type Branch int

// branchSymbols is the fixed ring order.
var branchSymbols = [12]string{"子", "丑", "寅", "卯", "辰", "巳", "午", "未", "申", "酉", "戌", "亥"}

// Branch constants for the positions referenced by name.
const (
	Zi Branch = iota
	Chou
	Yin
	Mao
	Chen
	Si
	Wu
	Wei
	Shen
	You
	Xu
	Hai
)

// Branches returns the 12 branches in ring order.
func Branches() []Branch {
	branches := make([]Branch, len(branchSymbols))
	for i := range branches {
		branches[i] = Branch(i)
	}
	return branches
}

// ParseBranch converts a single-character symbol into a Branch.
func ParseBranch(s string) (Branch, error) {
	for i, sym := range branchSymbols {
		if sym == s {
			return Branch(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidBranch, s)
}

// BranchAt returns the branch at index i, wrapping any integer onto the ring.
func BranchAt(i int) Branch {
	return Branch(mod12(i))
}

// IsValid reports whether b is inside the closed branch set.
func (b Branch) IsValid() bool {
	return b >= 0 && int(b) < len(branchSymbols)
}

// Index returns the ring position 0..11.
func (b Branch) Index() int {
	return int(b)
}

// Add moves n steps around the ring. n may be negative.
func (b Branch) Add(n int) Branch {
	return BranchAt(int(b) + n)
}

// Distance returns the forward distance from b to other, 0..11.
func (b Branch) Distance(other Branch) int {
	return mod12(int(other) - int(b))
}

func (b Branch) String() string {
	if !b.IsValid() {
		return ""
	}
	return branchSymbols[b]
}

// MarshalText encodes the branch as its symbol.
func (b Branch) MarshalText() ([]byte, error) {
	if !b.IsValid() {
		return nil, fmt.Errorf("%w: index %d", ErrInvalidBranch, int(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText decodes a branch symbol.
func (b *Branch) UnmarshalText(text []byte) error {
	v, err := ParseBranch(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// mod12 is a modulo that never returns a negative result.
func mod12(i int) int {
	r := i % 12
	if r < 0 {
		r += 12
	}
	return r
}

// =============================================================================
// Pillars
// =============================================================================

// Pillar is a (stem, branch) pair naming a year, month or day in the sexagenary cycle.
type Pillar struct {
	Stem   Stem
	Branch Branch
}

// ParsePillar parses a two-character label such as "甲午".
// A trailing 年/月/日 suffix, as found in almanac data, is accepted.
func ParsePillar(s string) (Pillar, error) {
	if utf8.RuneCountInString(s) < 2 {
		return Pillar{}, fmt.Errorf("%w: pillar %q too short", ErrInvalidStem, s)
	}
	runes := []rune(s)
	stem, err := ParseStem(string(runes[0]))
	if err != nil {
		return Pillar{}, fmt.Errorf("parse pillar %q: %w", s, err)
	}
	branch, err := ParseBranch(string(runes[1]))
	if err != nil {
		return Pillar{}, fmt.Errorf("parse pillar %q: %w", s, err)
	}
	if len(runes) > 2 {
		switch string(runes[2:]) {
		case "年", "月", "日":
		default:
			return Pillar{}, fmt.Errorf("%w: pillar %q has trailing text", ErrInvalidBranch, s)
		}
	}
	return Pillar{Stem: stem, Branch: branch}, nil
}

func (p Pillar) String() string {
	return p.Stem.String() + p.Branch.String()
}

// MarshalText encodes the pillar as its two-character label.
func (p Pillar) MarshalText() ([]byte, error) {
	if !p.Stem.IsValid() || !p.Branch.IsValid() {
		return nil, fmt.Errorf("%w: pillar (%d, %d)", ErrInvalidBranch, int(p.Stem), int(p.Branch))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a pillar label.
func (p *Pillar) UnmarshalText(b []byte) error {
	v, err := ParsePillar(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

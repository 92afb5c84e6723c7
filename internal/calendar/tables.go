package calendar

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTables is returned when a tables document fails validation.
var ErrInvalidTables = errors.New("invalid lookup tables")

//go:embed tables.yaml
var defaultTablesYAML []byte

// SolarTermCount is the number of solar terms in one cycle.
const SolarTermCount = 24

// StarSet holds the four transformation stars for one stem.
type StarSet struct {
	Fortune   string `json:"fortune"`   // 化祿
	Power     string `json:"power"`     // 化權
	Status    string `json:"status"`    // 化科
	Adversity string `json:"adversity"` // 化忌
}

// SolarTerm names one of the 24 seasonal markers.
type SolarTerm struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// Tables is the read-only lookup data the engine is built from.
// A Tables value is never modified after construction and is safe for
// concurrent use.
type Tables struct {
	transformations map[Stem]StarSet
	abbreviations   map[string]string
	solarTerms      []SolarTerm
	termIndex       map[string]int
	palaceNames     []string
	natalStars      map[string]Branch
}

// tablesDocument is the YAML shape of a tables file.
type tablesDocument struct {
	FourTransformations []struct {
		Stem      string `yaml:"stem"`
		Fortune   string `yaml:"fortune"`
		Power     string `yaml:"power"`
		Status    string `yaml:"status"`
		Adversity string `yaml:"adversity"`
	} `yaml:"four_transformations"`
	StarAbbreviations map[string]string `yaml:"star_abbreviations"`
	SolarTerms        []SolarTerm       `yaml:"solar_terms"`
	PalaceNames       []string          `yaml:"palace_names"`
	NatalStars        map[string]string `yaml:"natal_stars"`
}

var defaultTables = sync.OnceValues(func() (*Tables, error) {
	return ParseTables(defaultTablesYAML)
})

// DefaultTables returns the built-in tables, parsed once per process.
func DefaultTables() (*Tables, error) {
	return defaultTables()
}

// MustDefaultTables is DefaultTables for callers where the embedded data is
// known good, such as tests and package-level wiring.
func MustDefaultTables() *Tables {
	t, err := DefaultTables()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTables reads and validates a tables file.
func LoadTables(path string) (*Tables, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}
	t, err := ParseTables(b)
	if err != nil {
		return nil, fmt.Errorf("tables file %s: %w", path, err)
	}
	return t, nil
}

// ParseTables decodes and validates a YAML tables document.
func ParseTables(data []byte) (*Tables, error) {
	var doc tablesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidTables, err)
	}

	var errs []error
	t := &Tables{
		transformations: make(map[Stem]StarSet, len(stemSymbols)),
		abbreviations:   make(map[string]string, len(doc.StarAbbreviations)),
		termIndex:       make(map[string]int, SolarTermCount*2),
		natalStars:      make(map[string]Branch, len(doc.NatalStars)),
	}

	for _, row := range doc.FourTransformations {
		stem, err := ParseStem(row.Stem)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := t.transformations[stem]; dup {
			errs = append(errs, fmt.Errorf("duplicate four transformations row for %s", stem))
			continue
		}
		set := StarSet{Fortune: row.Fortune, Power: row.Power, Status: row.Status, Adversity: row.Adversity}
		if set.Fortune == "" || set.Power == "" || set.Status == "" || set.Adversity == "" {
			errs = append(errs, fmt.Errorf("four transformations row for %s is incomplete", stem))
			continue
		}
		t.transformations[stem] = set
	}
	for _, stem := range Stems() {
		if _, ok := t.transformations[stem]; !ok {
			errs = append(errs, fmt.Errorf("four transformations missing stem %s", stem))
		}
	}

	for star, abbr := range doc.StarAbbreviations {
		if star == "" || abbr == "" {
			errs = append(errs, fmt.Errorf("empty star abbreviation entry %q: %q", star, abbr))
			continue
		}
		t.abbreviations[star] = abbr
	}

	if len(doc.SolarTerms) != SolarTermCount {
		errs = append(errs, fmt.Errorf("want %d solar terms, got %d", SolarTermCount, len(doc.SolarTerms)))
	}
	for i, term := range doc.SolarTerms {
		if term.Name == "" {
			errs = append(errs, fmt.Errorf("solar term %d has no name", i))
			continue
		}
		if _, dup := t.termIndex[term.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate solar term %q", term.Name))
			continue
		}
		t.termIndex[term.Name] = i
		if term.Alias != "" && term.Alias != term.Name {
			t.termIndex[term.Alias] = i
		}
		t.solarTerms = append(t.solarTerms, term)
	}

	if len(doc.PalaceNames) != len(branchSymbols) {
		errs = append(errs, fmt.Errorf("want %d palace names, got %d", len(branchSymbols), len(doc.PalaceNames)))
	}
	t.palaceNames = append([]string(nil), doc.PalaceNames...)

	for star, sym := range doc.NatalStars {
		b, err := ParseBranch(sym)
		if err != nil {
			errs = append(errs, fmt.Errorf("natal star %s: %w", star, err))
			continue
		}
		t.natalStars[star] = b
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTables, errors.Join(errs...))
	}
	return t, nil
}

// =============================================================================
// Four transformations
// =============================================================================

// Transformations returns the four stars for a stem.
func (t *Tables) Transformations(stem Stem) (StarSet, bool) {
	set, ok := t.transformations[stem]
	return set, ok
}

// Abbreviate reduces a full star name to its one-character form.
// Stars without an abbreviation are returned unchanged.
func (t *Tables) Abbreviate(star string) string {
	if abbr, ok := t.abbreviations[star]; ok {
		return abbr
	}
	return star
}

// FourTransformations returns the 4-character code for a stem in the order
// Fortune, Power, Status, Adversity, e.g. "廉破武陽" for 甲.
// An unknown stem yields "".
func (t *Tables) FourTransformations(stem Stem) string {
	set, ok := t.transformations[stem]
	if !ok {
		return ""
	}
	return t.Abbreviate(set.Fortune) +
		t.Abbreviate(set.Power) +
		t.Abbreviate(set.Status) +
		t.Abbreviate(set.Adversity)
}

// FourTransformationsFor is FourTransformations keyed by the stem symbol.
// Symbols outside the stem set yield "".
func (t *Tables) FourTransformationsFor(symbol string) string {
	stem, err := ParseStem(symbol)
	if err != nil {
		return ""
	}
	return t.FourTransformations(stem)
}

// =============================================================================
// Solar terms
// =============================================================================

// SolarTerms returns a copy of the ordered solar term list.
func (t *Tables) SolarTerms() []SolarTerm {
	out := make([]SolarTerm, len(t.solarTerms))
	copy(out, t.solarTerms)
	return out
}

// FirstSolarTerm is the fallback term for dates before any term of their year.
func (t *Tables) FirstSolarTerm() string {
	return t.solarTerms[0].Name
}

// CanonicalSolarTerm maps a term name or its alias to the table name.
func (t *Tables) CanonicalSolarTerm(name string) (string, bool) {
	i, ok := t.termIndex[name]
	if !ok {
		return "", false
	}
	return t.solarTerms[i].Name, true
}

// PreviousSolarTerm returns the term before name in the cycle; the first
// term wraps to the last.
func (t *Tables) PreviousSolarTerm(name string) (string, bool) {
	i, ok := t.termIndex[name]
	if !ok {
		return "", false
	}
	n := len(t.solarTerms)
	return t.solarTerms[(i-1+n)%n].Name, true
}

// =============================================================================
// Transformation summary
// =============================================================================

// transformationLabels are the four transformations in StarSet order.
var transformationLabels = [4]string{"祿", "權", "科", "忌"}

// PalaceOf names the palace a star occupies when the flow day palace is
// dayPalace, counting counter-clockwise from 命宮. Stars missing from the
// natal chart report false.
func (t *Tables) PalaceOf(star string, dayPalace Branch) (string, bool) {
	b, ok := t.natalStars[star]
	if !ok || !dayPalace.IsValid() {
		return "", false
	}
	return t.palaceNames[b.Distance(dayPalace)], true
}

// TransformationSummary drafts a journal summary for the day stem: one line
// per transformed star, "<star><label>[ @<palace>]：".
func (t *Tables) TransformationSummary(stem Stem, dayPalace Branch) string {
	set, ok := t.transformations[stem]
	if !ok {
		return ""
	}

	stars := [4]string{set.Fortune, set.Power, set.Status, set.Adversity}
	lines := make([]string, 0, len(stars))
	for i, star := range stars {
		line := star + transformationLabels[i]
		if palace, ok := t.PalaceOf(star, dayPalace); ok {
			line += " @" + palace
		}
		lines = append(lines, line+"：")
	}
	return strings.Join(lines, "\n")
}

package calendar

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDefaultTables_FourTransformations(t *testing.T) {
	tables := MustDefaultTables()

	want := map[string]string{
		"甲": "廉破武陽",
		"乙": "機梁紫陰",
		"丙": "同機昌廉",
		"丁": "陰同機巨",
		"戊": "貪陰右機",
		"己": "武貪梁曲",
		"庚": "陽武陰同",
		"辛": "巨陽曲昌",
		"壬": "梁紫左武",
		"癸": "破巨陰貪",
	}

	for stem, code := range want {
		got := tables.FourTransformationsFor(stem)
		if got != code {
			t.Errorf("FourTransformationsFor(%s) = %q, want %q", stem, got, code)
		}
	}
}

func TestDefaultTables_CodesAreFourCharacters(t *testing.T) {
	tables := MustDefaultTables()
	for _, stem := range Stems() {
		code := tables.FourTransformations(stem)
		if n := utf8.RuneCountInString(code); n != 4 {
			t.Errorf("FourTransformations(%s) = %q, %d characters, want 4", stem, code, n)
		}
	}
}

func TestTables_UnknownStem(t *testing.T) {
	tables := MustDefaultTables()
	for _, sym := range []string{"", "子", "甲乙", "x"} {
		if got := tables.FourTransformationsFor(sym); got != "" {
			t.Errorf("FourTransformationsFor(%q) = %q, want empty", sym, got)
		}
	}
	if got := tables.FourTransformations(Stem(42)); got != "" {
		t.Errorf("FourTransformations(42) = %q, want empty", got)
	}
}

func TestTables_Abbreviate(t *testing.T) {
	tables := MustDefaultTables()
	if got := tables.Abbreviate("太陽"); got != "陽" {
		t.Errorf("Abbreviate(太陽) = %q, want 陽", got)
	}
	if got := tables.Abbreviate("天府"); got != "天府" {
		t.Errorf("Abbreviate(天府) = %q, want unchanged", got)
	}
}

func TestTables_SolarTerms(t *testing.T) {
	tables := MustDefaultTables()

	terms := tables.SolarTerms()
	if len(terms) != SolarTermCount {
		t.Fatalf("SolarTerms() len = %d, want %d", len(terms), SolarTermCount)
	}
	if tables.FirstSolarTerm() != "小寒" {
		t.Errorf("FirstSolarTerm() = %q, want 小寒", tables.FirstSolarTerm())
	}

	// The returned slice is a copy.
	terms[0].Name = "changed"
	if tables.FirstSolarTerm() != "小寒" {
		t.Error("SolarTerms() exposed internal state")
	}

	tests := []struct {
		in, want string
	}{
		{"惊蛰", "驚蟄"},
		{"驚蟄", "驚蟄"},
		{"小满", "小滿"},
		{"大寒", "大寒"},
	}
	for _, tt := range tests {
		got, ok := tables.CanonicalSolarTerm(tt.in)
		if !ok || got != tt.want {
			t.Errorf("CanonicalSolarTerm(%q) = %q, %v, want %q", tt.in, got, ok, tt.want)
		}
	}
	if _, ok := tables.CanonicalSolarTerm("not a term"); ok {
		t.Error("CanonicalSolarTerm(not a term) ok = true")
	}
}

func TestTables_PreviousSolarTerm(t *testing.T) {
	tables := MustDefaultTables()

	tests := []struct {
		in, want string
	}{
		{"小寒", "冬至"},
		{"大寒", "小寒"},
		{"立春", "大寒"},
		{"惊蛰", "雨水"},
	}
	for _, tt := range tests {
		got, ok := tables.PreviousSolarTerm(tt.in)
		if !ok || got != tt.want {
			t.Errorf("PreviousSolarTerm(%q) = %q, %v, want %q", tt.in, got, ok, tt.want)
		}
	}
}

func TestParseTables_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "not yaml",
			doc:     "four_transformations: [",
			wantMsg: "decode",
		},
		{
			name:    "missing stems",
			doc:     validTablesYAML(t, func(s string) string { return removeLine(s, "stem: 癸") }),
			wantMsg: "missing stem 癸",
		},
		{
			name: "incomplete row",
			doc: validTablesYAML(t, func(s string) string {
				return strings.Replace(s, "adversity: 太陽}", "adversity: }", 1)
			}),
			wantMsg: "incomplete",
		},
		{
			name:    "too few solar terms",
			doc:     validTablesYAML(t, func(s string) string { return removeLine(s, "name: 冬至") }),
			wantMsg: "want 24 solar terms",
		},
		{
			name: "duplicate solar term",
			doc: validTablesYAML(t, func(s string) string {
				return strings.Replace(s, "name: 冬至, alias: 冬至", "name: 大雪, alias: 大雪", 1)
			}),
			wantMsg: "duplicate solar term",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTables([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidTables) {
				t.Fatalf("ParseTables() error = %v, want ErrInvalidTables", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("ParseTables() error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()

	// A custom 庚 row is the documented reason to load an external file.
	doc := validTablesYAML(t, func(s string) string {
		return strings.Replace(s,
			"{stem: 庚, fortune: 太陽, power: 武曲, status: 太陰, adversity: 天同}",
			"{stem: 庚, fortune: 太陽, power: 武曲, status: 天同, adversity: 太陰}", 1)
	})
	path := filepath.Join(dir, "tables.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables() error = %v", err)
	}
	if got := tables.FourTransformationsFor("庚"); got != "陽武同陰" {
		t.Errorf("FourTransformationsFor(庚) = %q, want 陽武同陰", got)
	}

	if _, err := LoadTables(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadTables(missing) error = nil")
	}
}

func validTablesYAML(t *testing.T, edit func(string) string) string {
	t.Helper()
	out := edit(string(defaultTablesYAML))
	if out == string(defaultTablesYAML) {
		t.Fatal("edit did not change the tables document")
	}
	return out
}

func removeLine(s, substr string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, substr) {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func TestTables_TransformationSummary(t *testing.T) {
	tables := MustDefaultTables()

	got := tables.TransformationSummary(0, You)
	want := "廉貞祿 @官祿：\n破軍權 @遷移：\n武曲科 @財帛：\n太陽忌 @子女："
	if got != want {
		t.Errorf("TransformationSummary(甲, 酉) =\n%s\nwant\n%s", got, want)
	}

	if got := tables.TransformationSummary(Stem(11), You); got != "" {
		t.Errorf("TransformationSummary(invalid) = %q, want empty", got)
	}
}

func TestTables_TransformationSummary_StarNotInChart(t *testing.T) {
	doc := validTablesYAML(t, func(s string) string { return removeLine(s, "太陽: 午") })
	tables, err := ParseTables([]byte(doc))
	if err != nil {
		t.Fatalf("ParseTables() error = %v", err)
	}

	got := tables.TransformationSummary(0, You)
	if !strings.HasSuffix(got, "\n太陽忌：") {
		t.Errorf("TransformationSummary() = %q, want 太陽 line without palace", got)
	}
	if _, ok := tables.PalaceOf("太陽", You); ok {
		t.Error("PalaceOf(太陽) ok = true for a star missing from the chart")
	}
}

func TestParseTables_PalaceNames(t *testing.T) {
	doc := validTablesYAML(t, func(s string) string {
		return strings.Replace(s, "田宅, 福德, 父母]", "田宅, 福德]", 1)
	})
	if _, err := ParseTables([]byte(doc)); !errors.Is(err, ErrInvalidTables) {
		t.Errorf("ParseTables() error = %v, want ErrInvalidTables", err)
	}

	doc = validTablesYAML(t, func(s string) string {
		return strings.Replace(s, "七殺: 丑", "七殺: 甲", 1)
	})
	if _, err := ParseTables([]byte(doc)); !errors.Is(err, ErrInvalidBranch) {
		t.Errorf("ParseTables() error = %v, want ErrInvalidBranch", err)
	}
}

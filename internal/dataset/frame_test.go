package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `date,store_id,sales_amount
2026-01-01,s1,100
2026-01-02,s1,110
2026-01-03,s1,120
2026-01-01,s2,50
2026-01-02,s2,55
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), "sales_amount", "store_id")
	var derr *DataLoadError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want DataLoadError", err)
	}
}

func TestLoad_MissingColumns(t *testing.T) {
	path := writeCSV(t, sampleCSV)

	if _, err := Load(path, "revenue", "store_id"); err == nil {
		t.Error("expected error for missing target column")
	}
	if _, err := Load(path, "sales_amount", "shop"); err == nil {
		t.Error("expected error for missing series column")
	}
}

func TestFrame_SeriesAndFilter(t *testing.T) {
	f, err := Load(writeCSV(t, sampleCSV), "sales_amount", "store_id")
	if err != nil {
		t.Fatal(err)
	}

	if f.Len() != 5 {
		t.Errorf("len = %d, want 5", f.Len())
	}
	series := f.Series()
	if len(series) != 2 || series[0] != "s1" || series[1] != "s2" {
		t.Errorf("series = %v", series)
	}

	s2 := f.FilterSeries("s2")
	if s2.Len() != 2 {
		t.Errorf("filtered len = %d, want 2", s2.Len())
	}
	vals, err := s2.Floats("sales_amount")
	if err != nil {
		t.Fatal(err)
	}
	if vals[0] != 50 || vals[1] != 55 {
		t.Errorf("vals = %v", vals)
	}
}

func TestFrame_FloatsNonNumeric(t *testing.T) {
	f, err := Load(writeCSV(t, sampleCSV), "sales_amount", "store_id")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Floats("date"); err == nil {
		t.Error("expected error parsing dates as floats")
	}
}

func TestLoader_CacheAndValidation(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	l := NewLoader(2)

	f1, err := l.Load(path, "sales_amount", "store_id")
	if err != nil {
		t.Fatal(err)
	}
	// Cached parse, different roles: validation still applies.
	if _, err := l.Load(path, "revenue", "store_id"); err == nil {
		t.Error("cached load skipped column validation")
	}
	f2, err := l.Load(path, "sales_amount", "store_id")
	if err != nil {
		t.Fatal(err)
	}
	if f1.Len() != f2.Len() {
		t.Errorf("cache returned different data: %d vs %d", f1.Len(), f2.Len())
	}

	if _, err := l.Load(filepath.Join(t.TempDir(), "ghost.csv"), "a", "b"); err == nil {
		t.Error("expected DataLoadError for missing file")
	}
}

func TestDescribe(t *testing.T) {
	f, err := Load(writeCSV(t, sampleCSV), "sales_amount", "store_id")
	if err != nil {
		t.Fatal(err)
	}

	a, err := Describe(f)
	if err != nil {
		t.Fatal(err)
	}
	if a.TotalSeries != 2 {
		t.Errorf("total series = %d, want 2", a.TotalSeries)
	}
	if a.Overall.Count != 5 {
		t.Errorf("count = %d, want 5", a.Overall.Count)
	}
	if a.Overall.Mean != 87 {
		t.Errorf("mean = %v, want 87", a.Overall.Mean)
	}
	if a.Overall.Min != 50 || a.Overall.Max != 120 {
		t.Errorf("min/max = %v/%v", a.Overall.Min, a.Overall.Max)
	}
	if a.DateRange[0] != "2026-01-01" || a.DateRange[1] != "2026-01-03" {
		t.Errorf("date range = %v", a.DateRange)
	}
	if got := a.PerSeries["s1"].Length; got != 3 {
		t.Errorf("s1 length = %d, want 3", got)
	}

	out := a.Format()
	if !strings.Contains(out, "Total series: 2") {
		t.Errorf("format output unexpected:\n%s", out)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"sales_amount", "sales_amount"},
		{"Sales Amount", "sales_amount"},
		{"123weird!!name", "weird_name"},
		{"", "data"},
		{"!!!", "data"},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestArtifactName(t *testing.T) {
	if got := ArtifactName("sales_amount", "store_id"); got != "sales_amount_by_store" {
		t.Errorf("artifact name = %q", got)
	}
	if got := ArtifactName("Demand", "region"); got != "demand_by_region" {
		t.Errorf("artifact name = %q", got)
	}
}

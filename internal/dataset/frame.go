// Package dataset loads and validates tabular time-series data for the
// analyze command and exposes it as frames the execution namespace can
// operate on.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// DataLoadError reports a bad path, unparseable file, or missing named
// column. Fatal to the triggering command, not to the session.
type DataLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data load failed for %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("data load failed for %s: %s", e.Path, e.Reason)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// Frame is an in-memory tabular dataset with a designated target
// column and series identifier column.
type Frame struct {
	Path     string
	Columns  []string
	Records  [][]string // row-major, aligned with Columns
	Target   string
	SeriesID string

	colIndex map[string]int
}

// Load reads a CSV file and validates that the target and series
// columns exist. All failures are DataLoadError.
func Load(path, target, seriesID string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &DataLoadError{Path: path, Reason: "unparseable CSV", Err: err}
	}
	if len(rows) < 1 {
		return nil, &DataLoadError{Path: path, Reason: "empty file"}
	}

	fr := &Frame{
		Path:    path,
		Columns: rows[0],
		Records: rows[1:],
	}
	fr.buildIndex()

	return fr.WithRoles(target, seriesID)
}

// WithRoles returns a frame sharing the same data with the given
// target/series column roles, validating both exist.
func (f *Frame) WithRoles(target, seriesID string) (*Frame, error) {
	if _, ok := f.colIndex[target]; !ok {
		return nil, &DataLoadError{Path: f.Path, Reason: fmt.Sprintf("missing target column %q", target)}
	}
	if _, ok := f.colIndex[seriesID]; !ok {
		return nil, &DataLoadError{Path: f.Path, Reason: fmt.Sprintf("missing series id column %q", seriesID)}
	}
	out := *f
	out.Target = target
	out.SeriesID = seriesID
	return &out, nil
}

func (f *Frame) buildIndex() {
	f.colIndex = make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		f.colIndex[c] = i
	}
}

// Len returns the number of data rows.
func (f *Frame) Len() int { return len(f.Records) }

// HasColumn reports whether name is a column of the frame.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.colIndex[name]
	return ok
}

// Column returns the raw string values of a column.
func (f *Frame) Column(name string) ([]string, bool) {
	idx, ok := f.colIndex[name]
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(f.Records))
	for _, rec := range f.Records {
		if idx < len(rec) {
			out = append(out, rec[idx])
		}
	}
	return out, true
}

// Floats parses a column as float64, skipping blank cells.
func (f *Frame) Floats(name string) ([]float64, error) {
	vals, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("no such column %q", name)
	}
	out := make([]float64, 0, len(vals))
	for i, v := range vals {
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: not numeric: %q", name, i, v)
		}
		out = append(out, x)
	}
	return out, nil
}

// Series returns the distinct series identifiers in first-seen order.
func (f *Frame) Series() []string {
	idx, ok := f.colIndex[f.SeriesID]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, rec := range f.Records {
		if idx >= len(rec) {
			continue
		}
		id := rec[idx]
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// FilterSeries returns a frame containing only rows of the given series.
func (f *Frame) FilterSeries(id string) *Frame {
	idx, ok := f.colIndex[f.SeriesID]
	out := *f
	out.Records = nil
	if !ok {
		return &out
	}
	for _, rec := range f.Records {
		if idx < len(rec) && rec[idx] == id {
			out.Records = append(out.Records, rec)
		}
	}
	return &out
}

// Head returns a frame with at most n leading rows.
func (f *Frame) Head(n int) *Frame {
	out := *f
	if n < len(out.Records) {
		out.Records = out.Records[:n]
	}
	return &out
}

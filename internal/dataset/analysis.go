package dataset

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a numeric column.
type Stats struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// SeriesStats is the per-series slice of a descriptive analysis.
type SeriesStats struct {
	Length int
	Target Stats
}

// Analysis is the descriptive summary produced by the analyze command.
type Analysis struct {
	TotalSeries int
	DateRange   [2]string // empty when no "date" column exists
	Overall     Stats
	PerSeries   map[string]SeriesStats
	SeriesOrder []string
}

// Describe computes the overall and per-series target statistics.
func Describe(f *Frame) (*Analysis, error) {
	overall, err := describeColumn(f, f.Target)
	if err != nil {
		return nil, fmt.Errorf("describe %q: %w", f.Target, err)
	}

	a := &Analysis{
		Overall:   overall,
		PerSeries: make(map[string]SeriesStats),
	}

	if dates, ok := f.Column("date"); ok && len(dates) > 0 {
		sorted := append([]string(nil), dates...)
		sort.Strings(sorted)
		a.DateRange = [2]string{sorted[0], sorted[len(sorted)-1]}
	}

	for _, id := range f.Series() {
		sub := f.FilterSeries(id)
		st, err := describeColumn(sub, f.Target)
		if err != nil {
			return nil, fmt.Errorf("describe series %q: %w", id, err)
		}
		a.PerSeries[id] = SeriesStats{Length: sub.Len(), Target: st}
		a.SeriesOrder = append(a.SeriesOrder, id)
	}
	a.TotalSeries = len(a.SeriesOrder)
	return a, nil
}

func describeColumn(f *Frame, col string) (Stats, error) {
	vals, err := f.Floats(col)
	if err != nil {
		return Stats{}, err
	}
	if len(vals) == 0 {
		return Stats{}, fmt.Errorf("column %q has no numeric values", col)
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	return Stats{
		Count:  len(vals),
		Mean:   stat.Mean(vals, nil),
		Std:    stat.StdDev(vals, nil),
		Min:    sorted[0],
		Q25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}, nil
}

// Format renders an analysis as aligned text for the REPL.
func (a *Analysis) Format() string {
	var b strings.Builder

	b.WriteString("=== Overall Analysis ===\n")
	fmt.Fprintf(&b, "Total series: %d\n", a.TotalSeries)
	if a.DateRange[0] != "" {
		fmt.Fprintf(&b, "Date range: %s to %s\n", a.DateRange[0], a.DateRange[1])
	}
	b.WriteString("\n")
	writeStats(&b, a.Overall)

	b.WriteString("\n=== Per Series ===\n")
	for _, id := range a.SeriesOrder {
		s := a.PerSeries[id]
		fmt.Fprintf(&b, "\nSeries %s (%d records)\n", id, s.Length)
		writeStats(&b, s.Target)
	}
	return b.String()
}

func writeStats(b *strings.Builder, s Stats) {
	tw := tabwriter.NewWriter(b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "count\t%d\n", s.Count)
	fmt.Fprintf(tw, "mean\t%.2f\n", s.Mean)
	fmt.Fprintf(tw, "std\t%.2f\n", s.Std)
	fmt.Fprintf(tw, "min\t%.2f\n", s.Min)
	fmt.Fprintf(tw, "25%%\t%.2f\n", s.Q25)
	fmt.Fprintf(tw, "50%%\t%.2f\n", s.Median)
	fmt.Fprintf(tw, "75%%\t%.2f\n", s.Q75)
	fmt.Fprintf(tw, "max\t%.2f\n", s.Max)
	tw.Flush()
}

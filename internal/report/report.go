// Package report summarises the posture event log: label shares, confidence
// and per-delta statistics, and PNG charts of both.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/posture/classify"
)

// Stats describes one series of values.
type Stats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95Abs float64 `json:"p95_abs"` // 95th percentile of |value|
}

// DeltaNames lists the delta series in display order.
var DeltaNames = []string{"x_diff", "y_diff", "angle_diff", "nose_x_diff", "nose_y_diff"}

// Summary aggregates a set of stored verdicts.
type Summary struct {
	Frames     int                    `json:"frames"`
	Evaluated  int                    `json:"evaluated"`
	From       time.Time              `json:"from"`
	To         time.Time              `json:"to"`
	Labels     map[classify.Label]int `json:"labels"`
	GoodShare  float64                `json:"good_share"` // of evaluated frames
	Confidence Stats                  `json:"confidence"`
	Deltas     map[string]Stats       `json:"deltas"` // evaluated frames only
}

func deltaValues(d classify.Deltas) []float64 {
	return []float64{d.XDiff, d.YDiff, d.AngleDiff, d.NoseXDiff, d.NoseYDiff}
}

// Summarize computes a Summary. Records may arrive in any order.
func Summarize(records []db.ClassificationRecord) Summary {
	s := Summary{
		Frames: len(records),
		Labels: make(map[classify.Label]int),
		Deltas: make(map[string]Stats, len(DeltaNames)),
	}

	conf := make([]float64, 0, len(records))
	series := make([][]float64, len(DeltaNames))
	good := 0
	for _, rec := range records {
		if s.From.IsZero() || rec.Timestamp.Before(s.From) {
			s.From = rec.Timestamp
		}
		if rec.Timestamp.After(s.To) {
			s.To = rec.Timestamp
		}
		s.Labels[rec.Label]++
		conf = append(conf, rec.Confidence)

		if !rec.Evaluated {
			continue
		}
		s.Evaluated++
		if rec.Label.Good() {
			good++
		}
		for i, v := range deltaValues(rec.Deltas) {
			series[i] = append(series[i], v)
		}
	}

	if s.Evaluated > 0 {
		s.GoodShare = float64(good) / float64(s.Evaluated)
	}
	s.Confidence = describe(conf)
	for i, name := range DeltaNames {
		s.Deltas[name] = describe(series[i])
	}
	return s
}

func describe(x []float64) Stats {
	if len(x) == 0 {
		return Stats{}
	}
	st := Stats{N: len(x), Min: math.Inf(1), Max: math.Inf(-1)}
	st.Mean, st.StdDev = stat.MeanStdDev(x, nil)
	if len(x) < 2 {
		st.StdDev = 0
	}

	abs := make([]float64, len(x))
	for i, v := range x {
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	st.P95Abs = stat.Quantile(0.95, stat.Empirical, abs, nil)
	return st
}

// WriteText prints the summary as aligned tables.
func (s Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "frames\t%d\n", s.Frames)
	fmt.Fprintf(tw, "evaluated\t%d\n", s.Evaluated)
	if s.Frames > 0 {
		fmt.Fprintf(tw, "span\t%s .. %s\n", s.From.Format(time.RFC3339), s.To.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "good posture\t%.1f%%\n", 100*s.GoodShare)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "label\tframes\tshare")
	for _, l := range classify.Labels {
		n := s.Labels[l]
		if n == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", l, n, 100*float64(n)/float64(s.Frames))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "series\tn\tmean\tstd\tmin\tmax\tp95|x|")
	row := func(name string, st Stats) {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			name, st.N, st.Mean, st.StdDev, st.Min, st.Max, st.P95Abs)
	}
	row("confidence", s.Confidence)
	for _, name := range DeltaNames {
		if st := s.Deltas[name]; st.N > 0 {
			row(name, st)
		}
	}
	return tw.Flush()
}

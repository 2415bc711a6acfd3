package report

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/posture/classify"
)

var seriesColors = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
}

// WriteLabelChart saves a bar chart of frames per label as a PNG.
func WriteLabelChart(counts map[classify.Label]int, path string) error {
	var (
		values plotter.Values
		names  []string
	)
	for _, l := range classify.Labels {
		if n := counts[l]; n > 0 {
			values = append(values, float64(n))
			names = append(names, string(l))
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("no frames to chart")
	}

	p := plot.New()
	p.Title.Text = "Frames per label"
	p.Y.Label.Text = "frames"

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return fmt.Errorf("failed to create bar chart: %w", err)
	}
	bars.Color = seriesColors[0]
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.6
	p.X.Tick.Label.XAlign = -0.9

	width := vg.Length(len(values))*vg.Inch + 2*vg.Inch
	if err := p.Save(width, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteTimelinePlot saves the deltas of evaluated frames over time as a PNG.
// The x axis is seconds since the first frame.
func WriteTimelinePlot(records []db.ClassificationRecord, path string) error {
	evaluated := make([]db.ClassificationRecord, 0, len(records))
	for _, rec := range records {
		if rec.Evaluated {
			evaluated = append(evaluated, rec)
		}
	}
	if len(evaluated) == 0 {
		return fmt.Errorf("no evaluated frames to plot")
	}
	sort.SliceStable(evaluated, func(i, j int) bool {
		return evaluated[i].Timestamp.Before(evaluated[j].Timestamp)
	})

	p := plot.New()
	p.Title.Text = "Deltas from reference"
	p.X.Label.Text = "seconds"
	p.Y.Label.Text = "px / deg"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	start := evaluated[0].Timestamp
	for i, name := range DeltaNames {
		pts := make(plotter.XYs, len(evaluated))
		for j, rec := range evaluated {
			pts[j].X = rec.Timestamp.Sub(start).Seconds()
			pts[j].Y = deltaValues(rec.Deltas)[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create %s line: %w", name, err)
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

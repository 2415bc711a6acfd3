package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/posture.report/internal/posture/classify"
)

// handleTimelineChart renders the recent deltas and confidence as a line
// chart, plus a pie of the label mix, using go-echarts.
// Query params:
//   - session (optional; defaults to the running session, "all" for every session)
//   - limit (optional; default 600 frames)
func (s *Server) handleTimelineChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "history is not recorded")
		return
	}
	limit, err := queryLimit(r, 600, 20000)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := s.sessionParam(r)
	records, err := s.db.RecentClassifications(sessionID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history: %v", err))
		return
	}
	if len(records) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no frames recorded")
		return
	}

	// Records arrive newest first; the chart reads left to right.
	n := len(records)
	xs := make([]string, n)
	series := map[string][]opts.LineData{}
	names := []string{"x_diff", "y_diff", "angle_diff", "nose_x_diff", "nose_y_diff", "confidence"}
	for _, name := range names {
		series[name] = make([]opts.LineData, n)
	}
	counts := make(map[classify.Label]int)
	for i, rec := range records {
		j := n - 1 - i
		xs[j] = rec.Timestamp.Format("15:04:05.000")
		d := rec.Deltas
		series["x_diff"][j] = opts.LineData{Value: d.XDiff}
		series["y_diff"][j] = opts.LineData{Value: d.YDiff}
		series["angle_diff"][j] = opts.LineData{Value: d.AngleDiff}
		series["nose_x_diff"][j] = opts.LineData{Value: d.NoseXDiff}
		series["nose_y_diff"][j] = opts.LineData{Value: d.NoseYDiff}
		series["confidence"][j] = opts.LineData{Value: rec.Confidence * 100}
		counts[rec.Label]++
	}

	subtitle := fmt.Sprintf("session=%s frames=%d", sessionID, n)
	if sessionID == "" {
		subtitle = fmt.Sprintf("all sessions frames=%d", n)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Posture timeline", Width: "100%", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Deltas from reference", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px / deg / %"}),
	)
	line.SetXAxis(xs)
	for _, name := range names {
		line.AddSeries(name, series[name])
	}

	pieData := make([]opts.PieData, 0, len(counts))
	for _, l := range classify.Labels {
		if c := counts[l]; c > 0 {
			pieData = append(pieData, opts.PieData{Name: string(l), Value: c})
		}
	}
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Label mix"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	pie.AddSeries("labels", pieData,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}),
	)

	page := components.NewPage()
	page.PageTitle = "Posture timeline"
	page.AddCharts(line, pie)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

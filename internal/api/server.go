// Package api serves the posture monitor over HTTP: status, pushed frames,
// calibration requests and the recorded history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/posture/monitor"
	"github.com/banshee-data/posture.report/internal/posture/source"
	"github.com/banshee-data/posture.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxFrameBytes bounds a pushed frame body.
const maxFrameBytes = 64 * 1024

// Server exposes a Monitor to the presentation layer.
type Server struct {
	ctx     context.Context
	monitor *monitor.Monitor
	latest  *source.LatestSource
	db      *db.DB
}

// NewServer creates a Server. ctx bounds background calibrations started
// over HTTP, so they outlive the request that triggered them. latest and
// database may be nil: without latest pushed frames are classified but not
// offered to calibration, without database the history endpoints return 404.
func NewServer(ctx context.Context, m *monitor.Monitor, latest *source.LatestSource, database *db.DB) *Server {
	return &Server{
		ctx:     ctx,
		monitor: m,
		latest:  latest,
		db:      database,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/reference", s.showReference)
	mux.HandleFunc("/api/frames", s.pushFrame)
	mux.HandleFunc("/api/calibrate", s.startCalibration)
	mux.HandleFunc("/api/history", s.listHistory)
	mux.HandleFunc("/api/calibrations", s.listCalibrations)
	mux.HandleFunc("/api/charts/timeline", s.handleTimelineChart)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.monitor.Status())
}

func (s *Server) showReference(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	ref := s.monitor.Reference()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"calibrated": s.monitor.Calibrated(),
		"reference":  ref,
	})
}

func (s *Server) pushFrame(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBytes+1))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(body) > maxFrameBytes {
		s.writeJSONError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	frame, err := source.ParseFrame(body)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.latest != nil {
		s.latest.Push(frame)
	}
	s.writeJSON(w, http.StatusOK, s.monitor.ProcessFrame(frame))
}

func (s *Server) startCalibration(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}

	err := s.monitor.StartCalibration(s.ctx)
	switch {
	case errors.Is(err, monitor.ErrCalibrationInProgress):
		s.writeJSONError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeJSON(w, http.StatusAccepted, s.monitor.Status())
	}
}

// queryLimit parses the optional limit parameter.
func queryLimit(r *http.Request, def, max int) (int, error) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return def, nil
	}
	n, err := strconv.Atoi(l)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("invalid 'limit' parameter: must be 1-%d", max)
	}
	return n, nil
}

// sessionParam selects the monitor's own session unless overridden;
// "all" selects every stored session.
func (s *Server) sessionParam(r *http.Request) string {
	switch sid := r.URL.Query().Get("session"); sid {
	case "":
		return s.monitor.SessionID()
	case "all":
		return ""
	default:
		return sid
	}
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "history is not recorded")
		return
	}
	limit, err := queryLimit(r, 200, 5000)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.db.RecentClassifications(s.sessionParam(r), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve history: %v", err))
		return
	}
	if records == nil {
		records = []db.ClassificationRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) listCalibrations(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusNotFound, "history is not recorded")
		return
	}
	limit, err := queryLimit(r, 20, 1000)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.db.Calibrations(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve calibrations: %v", err))
		return
	}
	if records == nil {
		records = []db.CalibrationRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

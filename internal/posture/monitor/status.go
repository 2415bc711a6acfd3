package monitor

import (
	"fmt"

	"github.com/banshee-data/posture.report/internal/posture/calibration"
	"github.com/banshee-data/posture.report/internal/posture/classify"
	"github.com/banshee-data/posture.report/internal/posture/features"
)

// Status is a display snapshot of a Monitor.
type Status struct {
	SessionID       string               `json:"session_id"`
	Calibrated      bool                 `json:"calibrated"`
	Calibrating     bool                 `json:"calibrating"`
	Message         string               `json:"message"`
	Reference       features.Reference   `json:"reference"`
	Calibration     *calibration.State   `json:"calibration,omitempty"`
	LastCalibration *calibration.Outcome `json:"last_calibration,omitempty"`
	LastResult      *classify.Result     `json:"last_result,omitempty"`
	FramesProcessed uint64               `json:"frames_processed"`
}

// Status returns the current snapshot.
func (m *Monitor) Status() Status {
	ref := m.Reference()
	st := Status{
		SessionID:       m.id,
		Calibrated:      m.Calibrated(),
		Calibrating:     m.calibrating.Load(),
		Reference:       ref,
		FramesProcessed: m.frames.Load(),
	}

	m.mu.RLock()
	if m.calState != nil {
		s := *m.calState
		st.Calibration = &s
	}
	if m.lastOutcome != nil {
		o := *m.lastOutcome
		st.LastCalibration = &o
	}
	if m.lastResult != nil {
		r := *m.lastResult
		st.LastResult = &r
	}
	m.mu.RUnlock()

	st.Message = statusMessage(st, m.params)
	return st
}

// statusMessage picks the text for the status line: calibration progress
// while sampling, otherwise the latest verdict, prefixed by the outcome of a
// calibration that just failed.
func statusMessage(st Status, p calibration.Params) string {
	if st.Calibration != nil {
		return fmt.Sprintf("Calibrating... sit up straight (%d/%d samples, attempt %d/%d)",
			st.Calibration.Successes, p.RequiredSamples, st.Calibration.Attempts, p.MaxAttempts)
	}

	var msg string
	if st.LastResult != nil {
		msg = st.LastResult.Label.Message()
	}

	if o := st.LastCalibration; o != nil && !o.Succeeded() {
		reason := "not enough confident samples"
		if o.State.Reason == calibration.ReasonNoPerson {
			reason = "no person detected"
		}
		failure := "Calibration failed: " + reason
		if msg == "" {
			return failure
		}
		return failure + ". " + msg
	}

	if msg == "" {
		if st.Calibrated {
			return "Calibrated - waiting for frames"
		}
		return "Not calibrated - sit up straight and calibrate"
	}
	if !st.Calibrated {
		return msg + " (not calibrated)"
	}
	return msg
}

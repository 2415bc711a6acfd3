package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/calibration"
	"github.com/banshee-data/posture.report/internal/posture/classify"
	"github.com/banshee-data/posture.report/internal/posture/features"
)

// ClassificationRecord is one stored frame verdict.
type ClassificationRecord struct {
	SessionID  string          `json:"session_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Label      classify.Label  `json:"label"`
	Confidence float64         `json:"confidence"`
	Evaluated  bool            `json:"evaluated"`
	Deltas     classify.Deltas `json:"deltas"`
}

// CalibrationRecord is one stored calibration run.
type CalibrationRecord struct {
	ID         string                    `json:"id"`
	SessionID  string                    `json:"session_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Phase      string                    `json:"phase"`
	Reason     calibration.FailureReason `json:"reason,omitempty"`
	Attempts   int                       `json:"attempts"`
	Successes  int                       `json:"successes"`
	Reference  features.Reference        `json:"reference"`
	Spread     features.Features         `json:"spread"`
}

// RecordClassification stores the verdict for one frame.
func (db *DB) RecordClassification(sessionID string, at time.Time, r classify.Result) error {
	d := r.Debug.Deltas
	_, err := db.Exec(
		`INSERT INTO posture_samples (
			session_id, ts_unix_nanos, label, confidence, evaluated,
			x_diff, y_diff, angle_diff, nose_x_diff, nose_y_diff
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, at.UnixNano(), string(r.Label), r.Confidence, r.Debug.Evaluated,
		d.XDiff, d.YDiff, d.AngleDiff, d.NoseXDiff, d.NoseYDiff,
	)
	if err != nil {
		return fmt.Errorf("failed to record classification: %w", err)
	}
	return nil
}

// RecordCalibration stores the outcome of a calibration run.
func (db *DB) RecordCalibration(sessionID string, o calibration.Outcome) error {
	ref, err := json.Marshal(o.Reference)
	if err != nil {
		return fmt.Errorf("failed to encode reference: %w", err)
	}
	spread, err := json.Marshal(o.Spread)
	if err != nil {
		return fmt.Errorf("failed to encode spread: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO calibrations (
			calibration_id, session_id, started_at, finished_at, phase, reason,
			attempts, successes, reference_json, spread_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, sessionID, o.StartedAt.UnixNano(), o.FinishedAt.UnixNano(),
		o.State.Phase.String(), string(o.State.Reason),
		o.State.Attempts, o.State.Successes, string(ref), string(spread),
	)
	if err != nil {
		return fmt.Errorf("failed to record calibration: %w", err)
	}
	return nil
}

// RecentClassifications returns up to limit verdicts, newest first. An empty
// sessionID selects every session.
func (db *DB) RecentClassifications(sessionID string, limit int) ([]ClassificationRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(
		`SELECT session_id, ts_unix_nanos, label, confidence, evaluated,
			x_diff, y_diff, angle_diff, nose_x_diff, nose_y_diff
		FROM posture_samples
		WHERE (? = '' OR session_id = ?)
		ORDER BY ts_unix_nanos DESC, sample_id DESC
		LIMIT ?`,
		sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer rows.Close()

	var records []ClassificationRecord
	for rows.Next() {
		var (
			rec   ClassificationRecord
			ts    int64
			label string
		)
		if err := rows.Scan(
			&rec.SessionID, &ts, &label, &rec.Confidence, &rec.Evaluated,
			&rec.Deltas.XDiff, &rec.Deltas.YDiff, &rec.Deltas.AngleDiff,
			&rec.Deltas.NoseXDiff, &rec.Deltas.NoseYDiff,
		); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		rec.Label = classify.Label(label)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// LabelCounts tallies stored verdicts per label. An empty sessionID selects
// every session.
func (db *DB) LabelCounts(sessionID string) (map[classify.Label]int, error) {
	rows, err := db.Query(
		`SELECT label, COUNT(*) FROM posture_samples
		WHERE (? = '' OR session_id = ?)
		GROUP BY label`,
		sessionID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count labels: %w", err)
	}
	defer rows.Close()

	counts := make(map[classify.Label]int)
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[classify.Label(label)] = n
	}
	return counts, rows.Err()
}

// Calibrations returns up to limit calibration runs, newest first.
func (db *DB) Calibrations(limit int) ([]CalibrationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT calibration_id, session_id, started_at, finished_at, phase, reason,
			attempts, successes, reference_json, spread_json
		FROM calibrations
		ORDER BY finished_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibrations: %w", err)
	}
	defer rows.Close()

	var records []CalibrationRecord
	for rows.Next() {
		var (
			rec               CalibrationRecord
			started, finished int64
			reason            string
			refJSON, sprJSON  string
		)
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &started, &finished, &rec.Phase, &reason,
			&rec.Attempts, &rec.Successes, &refJSON, &sprJSON,
		); err != nil {
			return nil, err
		}
		rec.StartedAt = time.Unix(0, started).UTC()
		rec.FinishedAt = time.Unix(0, finished).UTC()
		rec.Reason = calibration.FailureReason(reason)
		if err := json.Unmarshal([]byte(refJSON), &rec.Reference); err != nil {
			return nil, fmt.Errorf("calibration %s: bad reference: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(sprJSON), &rec.Spread); err != nil {
			return nil, fmt.Errorf("calibration %s: bad spread: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

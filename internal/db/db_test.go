package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/posture/calibration"
	"github.com/banshee-data/posture.report/internal/posture/classify"
	"github.com/banshee-data/posture.report/internal/posture/features"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "posture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_Pragmas(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, db.MigrateUp())
}

func TestRecordClassification(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)

	results := []classify.Result{
		{Label: classify.LowConfidence, Confidence: 0.1},
		{Label: classify.GoodPosture, Confidence: 0.9, Debug: classify.DebugInfo{Evaluated: true}},
		{Label: classify.LeaningLeft, Confidence: 0.8, Debug: classify.DebugInfo{
			Evaluated: true,
			Deltas:    classify.Deltas{XDiff: 20, YDiff: -1, AngleDiff: 2, NoseXDiff: 3, NoseYDiff: -90},
		}},
	}
	for i, r := range results {
		require.NoError(t, db.RecordClassification("s1", base.Add(time.Duration(i)*time.Second), r))
	}
	require.NoError(t, db.RecordClassification("s2", base, classify.Result{Label: classify.GoodPosture}))

	recent, err := db.RecentClassifications("s1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, classify.LeaningLeft, recent[0].Label)
	assert.Equal(t, base.Add(2*time.Second), recent[0].Timestamp)
	assert.True(t, recent[0].Evaluated)
	assert.Equal(t, 20.0, recent[0].Deltas.XDiff)
	assert.Equal(t, -90.0, recent[0].Deltas.NoseYDiff)
	assert.Equal(t, classify.GoodPosture, recent[1].Label)

	all, err := db.RecentClassifications("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	counts, err := db.LabelCounts("s1")
	require.NoError(t, err)
	assert.Equal(t, map[classify.Label]int{
		classify.LowConfidence: 1,
		classify.GoodPosture:   1,
		classify.LeaningLeft:   1,
	}, counts)

	counts, err = db.LabelCounts("")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[classify.GoodPosture])
}

func TestRecordCalibration(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)

	ok := calibration.Outcome{
		ID: "cal-1",
		State: calibration.State{
			Phase:     calibration.Succeeded,
			Attempts:  4,
			Successes: 3,
		},
		Reference:  features.Reference{Features: features.Features{ShoulderHipYDiff: 200, NoseToCenterY: -80}},
		Spread:     features.Features{ShoulderHipYDiff: 1.5},
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
	failed := calibration.Outcome{
		ID: "cal-2",
		State: calibration.State{
			Phase:    calibration.Failed,
			Attempts: 10,
			Reason:   calibration.ReasonNoPerson,
		},
		StartedAt:  start.Add(time.Minute),
		FinishedAt: start.Add(time.Minute + 3*time.Second),
	}
	require.NoError(t, db.RecordCalibration("s1", ok))
	require.NoError(t, db.RecordCalibration("s1", failed))

	recs, err := db.Calibrations(0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "cal-2", recs[0].ID)
	assert.Equal(t, "failed", recs[0].Phase)
	assert.Equal(t, calibration.ReasonNoPerson, recs[0].Reason)
	assert.True(t, recs[0].Reference.IsZero())

	assert.Equal(t, "cal-1", recs[1].ID)
	assert.Equal(t, "succeeded", recs[1].Phase)
	assert.Equal(t, ok.Reference, recs[1].Reference)
	assert.Equal(t, ok.Spread, recs[1].Spread)
	assert.Equal(t, start, recs[1].StartedAt)
	assert.Equal(t, 3, recs[1].Successes)

	// Duplicate run IDs are rejected.
	assert.Error(t, db.RecordCalibration("s1", ok))
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}

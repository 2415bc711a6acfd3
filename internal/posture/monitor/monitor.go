package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture/calibration"
	"github.com/banshee-data/posture.report/internal/posture/classify"
	"github.com/banshee-data/posture.report/internal/posture/features"
	"github.com/banshee-data/posture.report/internal/posture/keypoints"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// ErrCalibrationInProgress is returned when a calibration is requested while
// another one is still sampling.
var ErrCalibrationInProgress = errors.New("calibration already in progress")

// Recorder persists verdicts and calibration runs. Implemented by db.DB.
type Recorder interface {
	RecordClassification(sessionID string, at time.Time, r classify.Result) error
	RecordCalibration(sessionID string, o calibration.Outcome) error
}

// Config wires a Monitor. Nil fields get defaults; Source is only needed
// for calibration and Next.
type Config struct {
	Extractor   *features.Extractor
	Classifier  *classify.Classifier
	Calibration calibration.Params
	Source      calibration.PoseSource
	Clock       timeutil.Clock
	Recorder    Recorder
}

// ConfigFrom builds the pipeline parts described by a PostureConfig.
func ConfigFrom(pc *config.PostureConfig) Config {
	return Config{
		Extractor:   features.NewExtractor(pc.GetMinKeypointScore()),
		Classifier:  classify.NewClassifierWithThresholds(pc.GetThresholds()),
		Calibration: pc.GetCalibrationParams(),
	}
}

// Monitor classifies frames for one user against their calibrated reference.
type Monitor struct {
	id         string
	extractor  *features.Extractor
	classifier *classify.Classifier
	params     calibration.Params
	source     calibration.PoseSource
	clock      timeutil.Clock
	recorder   Recorder

	reference   atomic.Pointer[features.Reference]
	calibrated  atomic.Bool
	calibrating atomic.Bool
	frames      atomic.Uint64
	wg          sync.WaitGroup

	mu          sync.RWMutex
	calState    *calibration.State
	lastOutcome *calibration.Outcome
	lastResult  *classify.Result
}

// New creates an uncalibrated Monitor with a fresh session ID.
func New(cfg Config) *Monitor {
	if cfg.Extractor == nil {
		cfg.Extractor = features.NewExtractor(keypoints.MinScore)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.NewClassifier()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Calibration == (calibration.Params{}) {
		cfg.Calibration = calibration.DefaultParams()
	}
	cfg.Calibration = cfg.Calibration.WithDefaults()

	m := &Monitor{
		id:         uuid.NewString(),
		extractor:  cfg.Extractor,
		classifier: cfg.Classifier,
		params:     cfg.Calibration,
		source:     cfg.Source,
		clock:      cfg.Clock,
		recorder:   cfg.Recorder,
	}
	m.reference.Store(&features.Reference{})
	return m
}

// SessionID identifies this Monitor in recorded data.
func (m *Monitor) SessionID() string {
	return m.id
}

// Reference returns the currently published reference. It is the zero value
// until a calibration succeeds.
func (m *Monitor) Reference() features.Reference {
	return *m.reference.Load()
}

// Calibrated reports whether any calibration has succeeded. A successful run
// may legitimately average to the zero reference.
func (m *Monitor) Calibrated() bool {
	return m.calibrated.Load()
}

// ProcessFrame extracts and classifies one frame against the current
// reference.
func (m *Monitor) ProcessFrame(frame keypoints.Frame) classify.Result {
	metrics := m.extractor.Extract(frame)
	result := m.classifier.Classify(metrics, m.Reference())
	n := m.frames.Add(1)

	m.mu.Lock()
	m.lastResult = &result
	m.mu.Unlock()

	monitoring.Debugf("frame %d: %s conf=%.2f deltas=%+v",
		n, result.Label, result.Confidence, result.Debug.Deltas)

	if m.recorder != nil {
		if err := m.recorder.RecordClassification(m.id, m.clock.Now(), result); err != nil {
			monitoring.Logf("session %s: %v", m.id, err)
		}
	}
	return result
}

// Next pulls one frame from the configured source and processes it.
func (m *Monitor) Next(ctx context.Context) (classify.Result, error) {
	if m.source == nil {
		return classify.Result{}, errors.New("monitor has no pose source")
	}
	frame, err := m.source.NextPose(ctx)
	if err != nil {
		return classify.Result{}, fmt.Errorf("failed to read pose: %w", err)
	}
	return m.ProcessFrame(frame), nil
}

// Calibrate runs a calibration to completion on the calling goroutine. On
// success the averaged reference replaces the current one in a single store.
func (m *Monitor) Calibrate(ctx context.Context) (calibration.Outcome, error) {
	if m.source == nil {
		return calibration.Outcome{}, errors.New("monitor has no pose source")
	}
	if !m.calibrating.CompareAndSwap(false, true) {
		return calibration.Outcome{}, ErrCalibrationInProgress
	}
	defer m.calibrating.Store(false)
	return m.calibrate(ctx)
}

// StartCalibration begins a calibration in the background and returns
// immediately. Progress and the result are visible through Status and
// Reference.
func (m *Monitor) StartCalibration(ctx context.Context) error {
	if m.source == nil {
		return errors.New("monitor has no pose source")
	}
	if !m.calibrating.CompareAndSwap(false, true) {
		return ErrCalibrationInProgress
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.calibrating.Store(false)
		if _, err := m.calibrate(ctx); err != nil {
			monitoring.Logf("session %s: calibration aborted: %v", m.id, err)
		}
	}()
	return nil
}

// Wait blocks until any background calibration has finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) calibrate(ctx context.Context) (calibration.Outcome, error) {
	runner := &calibration.Runner{
		ID:        uuid.NewString(),
		Source:    m.source,
		Extractor: m.extractor,
		Clock:     m.clock,
		Params:    m.params,
		OnAttempt: m.setCalibrationState,
	}
	m.setCalibrationState(calibration.State{Phase: calibration.Sampling})
	monitoring.Logf("session %s: calibration %s started", m.id, runner.ID)

	out, err := runner.Run(ctx)
	if err != nil {
		m.mu.Lock()
		m.calState = nil
		m.mu.Unlock()
		return out, err
	}

	if out.Succeeded() {
		ref := out.Reference
		m.reference.Store(&ref)
		m.calibrated.Store(true)
		monitoring.Logf("session %s: calibration %s succeeded after %d attempts",
			m.id, out.ID, out.State.Attempts)
	} else {
		monitoring.Logf("session %s: calibration %s failed after %d attempts: %s",
			m.id, out.ID, out.State.Attempts, out.State.Reason)
	}

	m.mu.Lock()
	m.calState = nil
	m.lastOutcome = &out
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.RecordCalibration(m.id, out); err != nil {
			monitoring.Logf("session %s: %v", m.id, err)
		}
	}
	return out, nil
}

func (m *Monitor) setCalibrationState(s calibration.State) {
	m.mu.Lock()
	m.calState = &s
	m.mu.Unlock()
}

// LastResult returns the most recent verdict, if any frame was processed.
func (m *Monitor) LastResult() (classify.Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastResult == nil {
		return classify.Result{}, false
	}
	return *m.lastResult, true
}

// Run pulls and classifies one frame per interval until ctx is done or the
// source fails. onResult, if set, sees every verdict. A cancelled ctx ends
// Run without error.
func (m *Monitor) Run(ctx context.Context, interval time.Duration, onResult func(classify.Result)) error {
	if m.source == nil {
		return errors.New("monitor has no pose source")
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			res, err := m.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if onResult != nil {
				onResult(res)
			}
		}
	}
}

package calibration

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/posture.report/internal/posture/features"
)

// Phase is the coarse state of a calibration session.
type Phase int

const (
	Sampling Phase = iota
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Sampling:
		return "sampling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// FailureReason explains why an attempt did not yield a sample. Both reasons
// end a session the same way; they differ only for display.
type FailureReason string

const (
	ReasonNone          FailureReason = ""
	ReasonNoPerson      FailureReason = "no_person"
	ReasonLowConfidence FailureReason = "low_confidence"
)

// Defaults for Params.
const (
	DefaultMaxAttempts         = 10
	DefaultRequiredSamples     = 3
	DefaultMinSampleConfidence = 0.5
	DefaultRetryDelay          = 300 * time.Millisecond
)

// Params bound a calibration session.
type Params struct {
	MaxAttempts         int
	RequiredSamples     int
	MinSampleConfidence float64 // a sample must exceed this, strictly
	RetryDelay          time.Duration
}

// DefaultParams returns the stock calibration bounds.
func DefaultParams() Params {
	return Params{
		MaxAttempts:         DefaultMaxAttempts,
		RequiredSamples:     DefaultRequiredSamples,
		MinSampleConfidence: DefaultMinSampleConfidence,
		RetryDelay:          DefaultRetryDelay,
	}
}

// WithDefaults fills unset (non-positive) bounds from DefaultParams. A zero
// RetryDelay is kept and means no wait between attempts.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.RequiredSamples <= 0 {
		p.RequiredSamples = d.RequiredSamples
	}
	if p.MinSampleConfidence <= 0 {
		p.MinSampleConfidence = d.MinSampleConfidence
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = d.RetryDelay
	}
	return p
}

// State is a snapshot of a session.
type State struct {
	Phase       Phase             `json:"phase"`
	Attempts    int               `json:"attempts"`
	Successes   int               `json:"successes"`
	Accumulator features.Features `json:"accumulator"`
	Reason      FailureReason     `json:"reason,omitempty"` // set in Failed, or the last rejected attempt while Sampling
}

// Session accumulates qualifying samples into a running mean. It never
// publishes anything itself; the caller reads Reference once Succeeded.
type Session struct {
	params  Params
	state   State
	samples [][features.NumFields]float64
}

// NewSession starts a session in the Sampling phase.
func NewSession(p Params) *Session {
	p = p.WithDefaults()
	return &Session{
		params:  p,
		samples: make([][features.NumFields]float64, 0, p.RequiredSamples),
	}
}

// Params returns the effective bounds, defaults applied.
func (s *Session) Params() Params {
	return s.params
}

// State returns the current snapshot.
func (s *Session) State() State {
	return s.state
}

// Done reports whether the session reached a terminal phase.
func (s *Session) Done() bool {
	return s.state.Phase != Sampling
}

// Observe consumes one attempt. detected is false when the estimator found
// no person. Observing a finished session is a no-op.
func (s *Session) Observe(m features.Metrics, detected bool) State {
	if s.Done() {
		return s.state
	}
	s.state.Attempts++

	switch {
	case !detected:
		s.state.Reason = ReasonNoPerson
	case m.Confidence <= s.params.MinSampleConfidence:
		s.state.Reason = ReasonLowConfidence
	default:
		s.accept(m.Features)
		if s.state.Successes >= s.params.RequiredSamples {
			s.state.Phase = Succeeded
			s.state.Reason = ReasonNone
			return s.state
		}
	}

	if s.state.Attempts >= s.params.MaxAttempts {
		s.state.Phase = Failed
	}
	return s.state
}

// accept folds a sample into the running mean:
// acc = (acc*(n-1) + x) / n for the n-th qualifying sample.
func (s *Session) accept(f features.Features) {
	s.state.Successes++
	n := float64(s.state.Successes)

	acc := s.state.Accumulator.Values()
	x := f.Values()
	for i := range acc {
		acc[i] = (acc[i]*(n-1) + x[i]) / n
	}
	s.state.Accumulator = features.FromValues(acc)
	s.samples = append(s.samples, x)
}

// Reference returns the averaged posture once the session Succeeded.
func (s *Session) Reference() (features.Reference, bool) {
	if s.state.Phase != Succeeded {
		return features.Reference{}, false
	}
	return features.Reference{Features: s.state.Accumulator}, true
}

// Spread is the per-field sample standard deviation of the accepted samples,
// a measure of how still the user sat during calibration. It is zero with
// fewer than two samples.
func (s *Session) Spread() features.Features {
	var out [features.NumFields]float64
	if len(s.samples) < 2 {
		return features.FromValues(out)
	}
	col := make([]float64, len(s.samples))
	for i := range out {
		for j, sample := range s.samples {
			col[j] = sample[i]
		}
		out[i] = stat.StdDev(col, nil)
	}
	return features.FromValues(out)
}

package calibration

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/posture/features"
	"github.com/banshee-data/posture.report/internal/posture/keypoints"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// PoseSource yields one pose estimate per call. An empty frame means the
// estimator found no person.
type PoseSource interface {
	NextPose(ctx context.Context) (keypoints.Frame, error)
}

// Outcome is the terminal result of a calibration run.
type Outcome struct {
	ID         string             `json:"id"`
	State      State              `json:"state"`
	Reference  features.Reference `json:"reference"`
	Spread     features.Features  `json:"spread"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Succeeded reports whether the run produced a new reference.
func (o Outcome) Succeeded() bool {
	return o.State.Phase == Succeeded
}

// Runner drives a Session from a PoseSource, waiting Params.RetryDelay on
// Clock between attempts.
type Runner struct {
	ID        string
	Source    PoseSource
	Extractor *features.Extractor
	Clock     timeutil.Clock
	Params    Params

	// OnAttempt, if set, observes the state after every attempt.
	OnAttempt func(State)
}

// Run samples until the session succeeds or exhausts its attempts. It
// returns ctx.Err() if cancelled first; nothing is published in that case.
// Estimator errors other than cancellation count as a no-person attempt.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	session := NewSession(r.Params)
	delay := session.Params().RetryDelay

	out := Outcome{ID: r.ID, StartedAt: clock.Now()}

	for !session.Done() {
		if session.State().Attempts > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-clock.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		frame, err := r.Source.NextPose(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			monitoring.Logf("calibration %s: pose estimate failed: %v", r.ID, err)
			frame = nil
		}

		st := session.Observe(r.Extractor.Extract(frame), frame.Detected())
		monitoring.Debugf("calibration %s: attempt %d/%d successes=%d reason=%q",
			r.ID, st.Attempts, session.Params().MaxAttempts, st.Successes, st.Reason)
		if r.OnAttempt != nil {
			r.OnAttempt(st)
		}
	}

	out.State = session.State()
	out.FinishedAt = clock.Now()
	if ref, ok := session.Reference(); ok {
		out.Reference = ref
		out.Spread = session.Spread()
	}
	return out, nil
}

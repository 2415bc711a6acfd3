package features

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/posture.report/internal/posture/keypoints"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

// uprightFrame is a seated user facing the camera with level shoulders.
func uprightFrame(score float64) keypoints.Frame {
	return keypoints.Frame{
		{Name: keypoints.Nose, X: 150, Y: 120, Score: score},
		{Name: keypoints.LeftShoulder, X: 100, Y: 200, Score: score},
		{Name: keypoints.RightShoulder, X: 200, Y: 200, Score: score},
		{Name: keypoints.LeftHip, X: 110, Y: 400, Score: score},
		{Name: keypoints.RightHip, X: 190, Y: 400, Score: score},
	}
}

func TestExtract_Upright(t *testing.T) {
	t.Parallel()

	got := Extract(uprightFrame(0.9))
	want := Metrics{
		Features: Features{
			ShoulderHipXDiff:  0,
			ShoulderHipYDiff:  200,
			ShoulderAngle:     0,
			UpperBodyAngle:    0,
			NoseShoulderDistX: 0,
			NoseShoulderDistY: -80,
			NoseShoulderDist:  80,
			NoseToCenterY:     -80,
		},
		Confidence: 1,
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_AllBelowMinScore(t *testing.T) {
	t.Parallel()

	for _, score := range []float64{0, 0.1, keypoints.MinScore} {
		got := Extract(uprightFrame(score))
		assert.Equal(t, Metrics{}, got, "score %v", score)
	}
	assert.Equal(t, Metrics{}, Extract(nil))
}

func TestExtract_ShoulderAngleDirection(t *testing.T) {
	t.Parallel()

	level := func(lx, rx float64) keypoints.Frame {
		return keypoints.Frame{
			{Name: keypoints.LeftShoulder, X: lx, Y: 200, Score: 0.9},
			{Name: keypoints.RightShoulder, X: rx, Y: 200, Score: 0.9},
		}
	}

	assert.InDelta(t, 0.0, Extract(level(100, 180)).ShoulderAngle, 1e-9)
	assert.InDelta(t, 180.0, Extract(level(180, 100)).ShoulderAngle, 1e-9)

	tilted := keypoints.Frame{
		{Name: keypoints.LeftShoulder, X: 100, Y: 200, Score: 0.9},
		{Name: keypoints.RightShoulder, X: 200, Y: 300, Score: 0.9},
	}
	assert.InDelta(t, 45.0, Extract(tilted).ShoulderAngle, 1e-9)
}

func TestExtract_UpperBodyAngle(t *testing.T) {
	t.Parallel()

	// Shoulders displaced 100px right of the hips, 100px above them.
	frame := keypoints.Frame{
		{Name: keypoints.LeftShoulder, X: 150, Y: 300, Score: 0.9},
		{Name: keypoints.RightShoulder, X: 250, Y: 300, Score: 0.9},
		{Name: keypoints.LeftHip, X: 50, Y: 400, Score: 0.9},
		{Name: keypoints.RightHip, X: 150, Y: 400, Score: 0.9},
	}
	m := Extract(frame)
	assert.InDelta(t, 100.0, m.ShoulderHipXDiff, 1e-9)
	assert.InDelta(t, 100.0, m.ShoulderHipYDiff, 1e-9)
	assert.InDelta(t, 45.0, m.UpperBodyAngle, 1e-9)
	// Shoulder line and torso groups only.
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)
}

func TestExtract_PartialConfidence(t *testing.T) {
	t.Parallel()

	frame := uprightFrame(0.9)
	frame[2].Score = 0.1 // right shoulder drops out

	m := Extract(frame)

	// Shoulder line skipped, torso at coverage (0.5+1)/2, head full.
	assert.InDelta(t, (2*0.75+1)/3, m.Confidence, 1e-9)
	assert.Equal(t, 0.0, m.ShoulderAngle)
	// Shoulder center collapses onto the left shoulder.
	assert.InDelta(t, 100.0-150.0, m.ShoulderHipXDiff, 1e-9)
	assert.InDelta(t, 50.0, m.NoseShoulderDistX, 1e-9)
	assert.InDelta(t, math.Hypot(50, -80), m.NoseShoulderDist, 1e-9)
}

func TestExtract_NoHips(t *testing.T) {
	t.Parallel()

	frame := uprightFrame(0.9)[:3]
	m := Extract(frame)

	assert.Equal(t, 0.0, m.ShoulderHipYDiff)
	assert.Equal(t, 0.0, m.UpperBodyAngle)
	assert.InDelta(t, -80.0, m.NoseToCenterY, 1e-9)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)
}

func TestExtract_ConfidenceBounds(t *testing.T) {
	t.Parallel()

	scores := []float64{0, 0.2, 0.31, 0.5, 0.9, 1}
	for _, a := range scores {
		for _, b := range scores {
			frame := uprightFrame(a)
			frame[1].Score = b
			frame[4].Score = b
			c := Extract(frame).Confidence
			assert.GreaterOrEqual(t, c, 0.0)
			assert.LessOrEqual(t, c, 1.0)
		}
	}
}

func TestExtractor_MinScore(t *testing.T) {
	t.Parallel()

	frame := uprightFrame(0.2)
	assert.Equal(t, 0.0, Extract(frame).Confidence)
	assert.InDelta(t, 1.0, NewExtractor(0.1).Extract(frame).Confidence, 1e-9)
}

func TestFeatures_Values(t *testing.T) {
	t.Parallel()

	f := Features{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, f, FromValues(f.Values()))
	assert.Len(t, FieldNames, NumFields)
}

func TestReference_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Reference{}.IsZero())
	assert.False(t, Reference{Features: Features{NoseToCenterY: -1}}.IsZero())
}

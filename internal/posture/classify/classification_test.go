package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/posture/features"
)

// saneThresholds flips the head-down rule to fire only when the nose drops
// 70px below its calibrated height, which lets the later rules be reached.
func saneThresholds() Thresholds {
	th := DefaultThresholds()
	th.NoseSlouchTolerance = 70
	return th
}

var calibrated = features.Reference{Features: features.Features{
	ShoulderHipXDiff:  0,
	ShoulderHipYDiff:  200,
	UpperBodyAngle:    0,
	NoseShoulderDistX: 0,
	NoseShoulderDistY: -80,
	NoseShoulderDist:  80,
	NoseToCenterY:     -80,
}}

func metricsWith(conf float64, mutate func(*features.Features)) features.Metrics {
	m := features.Metrics{Features: calibrated.Features, Confidence: conf}
	if mutate != nil {
		mutate(&m.Features)
	}
	return m
}

func TestClassify_LowConfidenceGate(t *testing.T) {
	t.Parallel()

	c := NewClassifierWithThresholds(saneThresholds())

	// Every rule would fire on these deltas.
	m := metricsWith(0.29, func(f *features.Features) {
		f.NoseToCenterY += 500
		f.ShoulderHipYDiff -= 500
		f.ShoulderHipXDiff += 500
		f.UpperBodyAngle += 90
		f.NoseShoulderDistX += 500
	})
	res := c.Classify(m, calibrated)
	assert.Equal(t, LowConfidence, res.Label)
	assert.Equal(t, 0.29, res.Confidence)
	assert.False(t, res.Debug.Evaluated)
	assert.Equal(t, Deltas{}, res.Debug.Deltas)

	res = c.Classify(metricsWith(0.31, nil), calibrated)
	assert.Equal(t, GoodPosture, res.Label)
	assert.Equal(t, 0.31, res.Confidence)
	assert.True(t, res.Debug.Evaluated)

	// Exactly at the threshold passes the gate.
	res = c.Classify(metricsWith(DefaultMinConfidence, nil), calibrated)
	assert.NotEqual(t, LowConfidence, res.Label)
}

func TestClassify_DefaultHeadDownRuleDominates(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	// Zero deltas sit above the -70 tolerance.
	res := c.Classify(metricsWith(0.31, nil), calibrated)
	assert.Equal(t, SlouchingHeadDown, res.Label)
	assert.Equal(t, Deltas{}, res.Debug.Deltas)

	// Only a nose well above its calibrated height escapes the rule.
	res = c.Classify(metricsWith(0.9, func(f *features.Features) { f.NoseToCenterY -= 71 }), calibrated)
	assert.Equal(t, GoodPosture, res.Label)

	res = c.Classify(metricsWith(0.9, func(f *features.Features) { f.NoseToCenterY -= 70 }), calibrated)
	assert.Equal(t, SlouchingHeadDown, res.Label, "boundary is strict")

	// Uncalibrated reference still yields a label.
	res = c.Classify(metricsWith(0.9, nil), features.Reference{})
	assert.Equal(t, SlouchingHeadDown, res.Label)
}

func TestClassify_Cascade(t *testing.T) {
	t.Parallel()

	c := NewClassifierWithThresholds(saneThresholds())

	tests := []struct {
		name   string
		mutate func(*features.Features)
		want   Label
	}{
		{"good", nil, GoodPosture},
		{"head down", func(f *features.Features) { f.NoseToCenterY += 71 }, SlouchingHeadDown},
		{"shoulders down", func(f *features.Features) { f.ShoulderHipYDiff -= 16 }, SlouchingShouldersDown},
		{"shoulders down boundary", func(f *features.Features) { f.ShoulderHipYDiff -= 15 }, GoodPosture},
		{"shoulders raised", func(f *features.Features) { f.ShoulderHipYDiff += 40 }, GoodPosture},
		{"lean left", func(f *features.Features) { f.ShoulderHipXDiff += 16 }, LeaningLeft},
		{"lean right", func(f *features.Features) { f.ShoulderHipXDiff -= 16 }, LeaningRight},
		{"lean boundary", func(f *features.Features) { f.ShoulderHipXDiff += 15 }, GoodPosture},
		{"torso left", func(f *features.Features) { f.UpperBodyAngle += 11 }, TorsoLeaningLeft},
		{"torso right", func(f *features.Features) { f.UpperBodyAngle -= 11 }, TorsoLeaningRight},
		{"torso boundary", func(f *features.Features) { f.UpperBodyAngle -= 10 }, GoodPosture},
		{"forward head", func(f *features.Features) { f.NoseShoulderDistX += 16 }, ForwardHeadPosture},
		{"head back is fine", func(f *features.Features) { f.NoseShoulderDistX -= 40 }, GoodPosture},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := c.Classify(metricsWith(0.8, tt.mutate), calibrated)
			assert.Equal(t, tt.want, res.Label)
		})
	}
}

func TestClassify_Priority(t *testing.T) {
	t.Parallel()

	c := NewClassifierWithThresholds(saneThresholds())

	tests := []struct {
		name   string
		mutate func(*features.Features)
		want   Label
	}{
		{
			name: "head down beats leaning",
			mutate: func(f *features.Features) {
				f.NoseToCenterY += 100
				f.ShoulderHipXDiff += 100
			},
			want: SlouchingHeadDown,
		},
		{
			name: "shoulders down beats torso and forward head",
			mutate: func(f *features.Features) {
				f.ShoulderHipYDiff -= 30
				f.UpperBodyAngle += 30
				f.NoseShoulderDistX += 30
			},
			want: SlouchingShouldersDown,
		},
		{
			name: "lean beats torso angle",
			mutate: func(f *features.Features) {
				f.ShoulderHipXDiff -= 30
				f.UpperBodyAngle += 30
			},
			want: LeaningRight,
		},
		{
			name: "torso beats forward head",
			mutate: func(f *features.Features) {
				f.UpperBodyAngle -= 30
				f.NoseShoulderDistX += 30
			},
			want: TorsoLeaningRight,
		},
	}

	for _, tt := range tests {
		res := c.Classify(metricsWith(0.9, tt.mutate), calibrated)
		assert.Equal(t, tt.want, res.Label, tt.name)
	}

	// Same priority holds under the default tolerance.
	res := NewClassifier().Classify(metricsWith(0.9, func(f *features.Features) {
		f.NoseToCenterY += 100
		f.ShoulderHipXDiff += 100
	}), calibrated)
	assert.Equal(t, SlouchingHeadDown, res.Label)
}

func TestClassify_Debug(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	m := metricsWith(0.75, func(f *features.Features) {
		f.ShoulderHipXDiff += 3
		f.ShoulderHipYDiff -= 4
		f.UpperBodyAngle += 5
		f.NoseShoulderDistX += 6
		f.NoseToCenterY += 7
	})

	res := c.Classify(m, calibrated)
	require.True(t, res.Debug.Evaluated)
	assert.Equal(t, Deltas{XDiff: 3, YDiff: -4, AngleDiff: 5, NoseXDiff: 6, NoseYDiff: 7}, res.Debug.Deltas)
	assert.Equal(t, m, res.Debug.Metrics)
	assert.Equal(t, calibrated, res.Debug.Reference)
	assert.Equal(t, ModelVersion, res.Model)
	assert.Equal(t, 0.75, res.Confidence)
}

func TestLabels(t *testing.T) {
	t.Parallel()

	assert.Len(t, Labels, 9)
	assert.True(t, GoodPosture.Good())
	assert.False(t, LeaningLeft.Good())
}

func TestLabel_Message(t *testing.T) {
	t.Parallel()

	for _, l := range Labels {
		assert.NotEmpty(t, l.Message())
		assert.NotEqual(t, string(l), l.Message(), l)
	}
	assert.Equal(t, "mystery", Label("mystery").Message())
}

package classify

import (
	"math"

	"github.com/banshee-data/posture.report/internal/posture/features"
)

// Label is the classifier's categorical verdict for one frame.
type Label string

const (
	LowConfidence          Label = "low_confidence"
	SlouchingHeadDown      Label = "slouching_head_down"
	SlouchingShouldersDown Label = "slouching_shoulders_down"
	LeaningLeft            Label = "leaning_left"
	LeaningRight           Label = "leaning_right"
	TorsoLeaningLeft       Label = "torso_leaning_left"
	TorsoLeaningRight      Label = "torso_leaning_right"
	ForwardHeadPosture     Label = "forward_head_posture"
	GoodPosture            Label = "good_posture"
)

// Labels lists every label in cascade order, LowConfidence first.
var Labels = []Label{
	LowConfidence,
	SlouchingHeadDown,
	SlouchingShouldersDown,
	LeaningLeft,
	LeaningRight,
	TorsoLeaningLeft,
	TorsoLeaningRight,
	ForwardHeadPosture,
	GoodPosture,
}

// Good reports whether the label needs no correction from the user.
func (l Label) Good() bool {
	return l == GoodPosture
}

// Default tolerances (pixels unless noted).
const (
	DefaultMinConfidence        = 0.3
	DefaultNoseSlouchTolerance  = -70.0
	DefaultSlouchTolerance      = 15.0
	DefaultLeanTolerance        = 15.0
	DefaultAngleTolerance       = 10.0 // degrees
	DefaultForwardHeadTolerance = 15.0

	ModelVersion = "rule-cascade-v1"
)

// Thresholds parameterise the rule cascade.
type Thresholds struct {
	MinConfidence        float64
	NoseSlouchTolerance  float64
	SlouchTolerance      float64
	LeanTolerance        float64
	AngleTolerance       float64
	ForwardHeadTolerance float64
}

// DefaultThresholds returns the tolerances the cascade was tuned with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConfidence:        DefaultMinConfidence,
		NoseSlouchTolerance:  DefaultNoseSlouchTolerance,
		SlouchTolerance:      DefaultSlouchTolerance,
		LeanTolerance:        DefaultLeanTolerance,
		AngleTolerance:       DefaultAngleTolerance,
		ForwardHeadTolerance: DefaultForwardHeadTolerance,
	}
}

// Deltas are the live-minus-reference differences the cascade inspects.
type Deltas struct {
	XDiff     float64 `json:"x_diff"`
	YDiff     float64 `json:"y_diff"`
	AngleDiff float64 `json:"angle_diff"`
	NoseXDiff float64 `json:"nose_x_diff"`
	NoseYDiff float64 `json:"nose_y_diff"`
}

// ComputeDeltas compares m against ref.
func ComputeDeltas(m features.Features, ref features.Reference) Deltas {
	return Deltas{
		XDiff:     m.ShoulderHipXDiff - ref.ShoulderHipXDiff,
		YDiff:     m.ShoulderHipYDiff - ref.ShoulderHipYDiff,
		AngleDiff: m.UpperBodyAngle - ref.UpperBodyAngle,
		NoseXDiff: m.NoseShoulderDistX - ref.NoseShoulderDistX,
		NoseYDiff: m.NoseToCenterY - ref.NoseToCenterY,
	}
}

// DebugInfo is diagnostic output only; nothing downstream branches on it.
type DebugInfo struct {
	Deltas    Deltas             `json:"deltas"`
	Metrics   features.Metrics   `json:"metrics"`
	Reference features.Reference `json:"reference"`
	Evaluated bool               `json:"evaluated"` // false when the low-confidence gate short-circuited
}

// Result holds the outcome of classifying one frame.
type Result struct {
	Label      Label     `json:"status"`
	Confidence float64   `json:"confidence"`
	Model      string    `json:"model"`
	Debug      DebugInfo `json:"debug"`
}

// Classifier performs rule-based posture classification.
type Classifier struct {
	ModelVersion string
	Thresholds   Thresholds
}

// NewClassifier creates a classifier with the default thresholds.
func NewClassifier() *Classifier {
	return NewClassifierWithThresholds(DefaultThresholds())
}

// NewClassifierWithThresholds creates a classifier with custom thresholds.
func NewClassifierWithThresholds(th Thresholds) *Classifier {
	return &Classifier{
		ModelVersion: ModelVersion,
		Thresholds:   th,
	}
}

// Classify labels m against ref. Every input, including the zero reference
// of an uncalibrated session, produces a label.
func (c *Classifier) Classify(m features.Metrics, ref features.Reference) Result {
	result := Result{
		Confidence: m.Confidence,
		Model:      c.ModelVersion,
		Debug: DebugInfo{
			Metrics:   m,
			Reference: ref,
		},
	}

	if m.Confidence < c.Thresholds.MinConfidence {
		result.Label = LowConfidence
		return result
	}

	d := ComputeDeltas(m.Features, ref)
	result.Debug.Deltas = d
	result.Debug.Evaluated = true
	result.Label = c.cascade(d)
	return result
}

// cascade applies the rules in priority order; the first match wins.
//
// NoseSlouchTolerance is negative, so the head-down rule holds unless the
// nose rose well above its calibrated height. In practice it shadows every
// later rule. This is the observed behaviour of the tuned model and is kept.
func (c *Classifier) cascade(d Deltas) Label {
	th := c.Thresholds

	// 1. Head dropped relative to the shoulder line
	if d.NoseYDiff > th.NoseSlouchTolerance {
		return SlouchingHeadDown
	}

	// 2. Shoulders sank toward the hips
	if d.YDiff < -th.SlouchTolerance {
		return SlouchingShouldersDown
	}

	// 3. Shoulders shifted sideways over the hips
	if math.Abs(d.XDiff) > th.LeanTolerance {
		if d.XDiff > 0 {
			return LeaningLeft
		}
		return LeaningRight
	}

	// 4. Torso tilted from its calibrated angle
	if math.Abs(d.AngleDiff) > th.AngleTolerance {
		if d.AngleDiff > 0 {
			return TorsoLeaningLeft
		}
		return TorsoLeaningRight
	}

	// 5. Head pushed forward of the shoulders
	if d.NoseXDiff > th.ForwardHeadTolerance {
		return ForwardHeadPosture
	}

	return GoodPosture
}

// Message is the status text shown to the user for the label.
func (l Label) Message() string {
	switch l {
	case LowConfidence:
		return "Can't see you clearly - adjust the camera"
	case SlouchingHeadDown:
		return "Slouching - lift your head"
	case SlouchingShouldersDown:
		return "Slouching - raise your shoulders"
	case LeaningLeft:
		return "Leaning left - center your shoulders"
	case LeaningRight:
		return "Leaning right - center your shoulders"
	case TorsoLeaningLeft:
		return "Torso tilted left - sit upright"
	case TorsoLeaningRight:
		return "Torso tilted right - sit upright"
	case ForwardHeadPosture:
		return "Head too far forward - pull your chin back"
	case GoodPosture:
		return "Good posture"
	default:
		return string(l)
	}
}

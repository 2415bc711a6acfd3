package features

import (
	"math"

	"github.com/banshee-data/posture.report/internal/posture/keypoints"
)

// Confidence weights of the three feature groups.
const (
	shoulderLineWeight = 2.0
	torsoWeight        = 2.0
	headWeight         = 1.0
)

// Extractor derives Metrics from keypoint frames.
type Extractor struct {
	// MinScore gates individual keypoints; zero selects keypoints.MinScore.
	MinScore float64
}

// NewExtractor creates an extractor with the given keypoint score gate.
func NewExtractor(minScore float64) *Extractor {
	return &Extractor{MinScore: minScore}
}

// Extract uses the default keypoint score gate.
func Extract(frame keypoints.Frame) Metrics {
	return (&Extractor{}).Extract(frame)
}

func (e *Extractor) minScore() float64 {
	if e == nil || e.MinScore <= 0 {
		return keypoints.MinScore
	}
	return e.MinScore
}

// Extract computes the feature groups that the frame supports. Each group is
// gated independently: a group whose keypoints are missing or under-confident
// leaves its fields at zero and adds nothing to the confidence average.
func (e *Extractor) Extract(frame keypoints.Frame) Metrics {
	minScore := e.minScore()

	leftShoulder := frame.Get(keypoints.LeftShoulder)
	rightShoulder := frame.Get(keypoints.RightShoulder)
	nose := frame.Get(keypoints.Nose)

	shoulderCenter := keypoints.ComputeCenterWithMinScore(minScore, leftShoulder, rightShoulder)
	hipCenter := keypoints.ComputeCenterWithMinScore(minScore,
		frame.Get(keypoints.LeftHip), frame.Get(keypoints.RightHip))

	var m Metrics
	var num, den float64

	if keypoints.Confident(leftShoulder, minScore) && keypoints.Confident(rightShoulder, minScore) {
		dx := rightShoulder.X - leftShoulder.X
		dy := rightShoulder.Y - leftShoulder.Y
		m.ShoulderAngle = degrees(math.Atan2(dy, dx))
		num += shoulderLineWeight
		den += shoulderLineWeight
	}

	if shoulderCenter != nil && hipCenter != nil {
		dx := shoulderCenter.X - hipCenter.X
		dy := shoulderCenter.Y - hipCenter.Y
		m.ShoulderHipXDiff = dx
		m.ShoulderHipYDiff = hipCenter.Y - shoulderCenter.Y
		m.UpperBodyAngle = degrees(math.Atan2(dx, -dy))
		num += torsoWeight * (shoulderCenter.Confidence + hipCenter.Confidence) / 2
		den += torsoWeight
	}

	if keypoints.Confident(nose, minScore) && shoulderCenter != nil {
		dx := nose.X - shoulderCenter.X
		dy := nose.Y - shoulderCenter.Y
		m.NoseShoulderDistX = dx
		m.NoseShoulderDistY = dy
		m.NoseShoulderDist = math.Hypot(dx, dy)
		m.NoseToCenterY = dy
		num += headWeight
		den += headWeight
	}

	if den > 0 {
		m.Confidence = num / den
	}
	return m
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

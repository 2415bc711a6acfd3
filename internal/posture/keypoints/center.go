package keypoints

// MinScore is the minimum detection score for a keypoint to be used.
// The comparison is strict: a score of exactly MinScore is rejected.
const MinScore = 0.3

// Confident reports whether kp exists and its score passes minScore.
func Confident(kp *Keypoint, minScore float64) bool {
	return kp != nil && kp.Score > minScore
}

// ComputeCenter averages the positions of the points scoring above MinScore.
// It returns nil when no point passes.
func ComputeCenter(points ...*Keypoint) *CenterPoint {
	return ComputeCenterWithMinScore(MinScore, points...)
}

// ComputeCenterWithMinScore is ComputeCenter with an explicit score gate.
//
// Confidence is the coverage ratio passing/len(points), not a mean of the
// passing scores: one visible shoulder out of two yields 0.5 whatever its
// own score is.
func ComputeCenterWithMinScore(minScore float64, points ...*Keypoint) *CenterPoint {
	var sumX, sumY float64
	passing := 0
	for _, p := range points {
		if !Confident(p, minScore) {
			continue
		}
		sumX += p.X
		sumY += p.Y
		passing++
	}
	if passing == 0 {
		return nil
	}

	n := float64(passing)
	return &CenterPoint{
		X:          sumX / n,
		Y:          sumY / n,
		Confidence: n / float64(len(points)),
	}
}

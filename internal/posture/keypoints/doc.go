// Package keypoints owns the input layer of the posture model.
//
// Responsibilities: the named 2D keypoint vocabulary produced by the external
// pose estimator, per-frame lookup by name, and confidence-gated centroids of
// bilateral keypoint pairs.
// Key types: Keypoint, Frame, CenterPoint.
//
// Dependency rule: this package depends on nothing else in internal/posture.
// No SQL/database code is allowed in this package.
package keypoints

// Package features owns the geometry layer of the posture model.
//
// Responsibilities: deriving the fixed set of scalar posture features from a
// keypoint frame together with an aggregate confidence, and the calibrated
// Reference those features are compared against.
// Key types: Features, Metrics, Reference, Extractor.
//
// Dependency rule: may depend on keypoints, never on calibration or classify.
// No SQL/database code is allowed in this package.
package features

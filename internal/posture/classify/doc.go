// Package classify owns the decision layer of the posture model.
//
// Responsibilities: comparing live Metrics against the calibrated Reference
// and applying the priority-ordered rule cascade that yields a posture Label.
// Key types: Label, Thresholds, Classifier, Result.
//
// Dependency rule: may depend on keypoints and features, never on calibration.
// No SQL/database code is allowed in this package.
package classify

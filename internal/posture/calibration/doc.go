// Package calibration owns the reference-acquisition layer of the posture
// model.
//
// Responsibilities: the bounded, retrying multi-sample loop that averages
// confident frames into a Reference. Session is the pure state machine;
// Runner drives it from a PoseSource on an injected clock.
// Key types: Params, State, Session, Runner, Outcome.
//
// Dependency rule: may depend on keypoints and features, never on classify.
// No SQL/database code is allowed in this package.
package calibration

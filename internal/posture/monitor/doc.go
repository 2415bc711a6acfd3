// Package monitor hosts the posture model for one user session.
//
// A Monitor owns the only mutable state of the pipeline: the calibrated
// reference, published atomically when a calibration run succeeds, plus the
// latest result and calibration status for display. Frames are pushed in with
// ProcessFrame or pulled from the configured source by Next and Run, which
// ticks on the injected clock. StartCalibration samples in the background.
package monitor

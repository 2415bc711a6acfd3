package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/posture.report/internal/posture/calibration"
	"github.com/banshee-data/posture.report/internal/posture/classify"
	"github.com/banshee-data/posture.report/internal/posture/keypoints"
)

// DefaultConfigPath is the path to the canonical posture defaults file.
const DefaultConfigPath = "config/posture.defaults.json"

// PostureConfig holds the tunable parameters of the posture pipeline.
// Every field is optional; Get* accessors fall back to built-in defaults,
// so partial files are safe.
type PostureConfig struct {
	// Keypoint gate
	MinKeypointScore *float64 `json:"min_keypoint_score,omitempty"`

	// Classifier params
	LowConfidenceThreshold *float64 `json:"low_confidence_threshold,omitempty"`
	NoseSlouchTolerance    *float64 `json:"nose_slouch_tolerance,omitempty"`
	SlouchTolerance        *float64 `json:"slouch_tolerance,omitempty"`
	LeanTolerance          *float64 `json:"lean_tolerance,omitempty"`
	AngleTolerance         *float64 `json:"angle_tolerance,omitempty"`
	ForwardHeadTolerance   *float64 `json:"forward_head_tolerance,omitempty"`

	// Calibration params
	CalibrationMaxAttempts     *int     `json:"calibration_max_attempts,omitempty"`
	CalibrationRequiredSamples *int     `json:"calibration_required_samples,omitempty"`
	CalibrationMinConfidence   *float64 `json:"calibration_min_confidence,omitempty"`
	CalibrationRetryDelay      *string  `json:"calibration_retry_delay,omitempty"` // duration string like "300ms"

	// Host loop
	FrameInterval *string `json:"frame_interval,omitempty"` // duration string like "100ms"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyPostureConfig returns a PostureConfig with all fields set to nil.
func EmptyPostureConfig() *PostureConfig {
	return &PostureConfig{}
}

// DefaultPostureConfig returns a config with every field set to its default.
func DefaultPostureConfig() *PostureConfig {
	return &PostureConfig{
		MinKeypointScore:           ptrFloat64(keypoints.MinScore),
		LowConfidenceThreshold:     ptrFloat64(classify.DefaultMinConfidence),
		NoseSlouchTolerance:        ptrFloat64(classify.DefaultNoseSlouchTolerance),
		SlouchTolerance:            ptrFloat64(classify.DefaultSlouchTolerance),
		LeanTolerance:              ptrFloat64(classify.DefaultLeanTolerance),
		AngleTolerance:             ptrFloat64(classify.DefaultAngleTolerance),
		ForwardHeadTolerance:       ptrFloat64(classify.DefaultForwardHeadTolerance),
		CalibrationMaxAttempts:     ptrInt(calibration.DefaultMaxAttempts),
		CalibrationRequiredSamples: ptrInt(calibration.DefaultRequiredSamples),
		CalibrationMinConfidence:   ptrFloat64(calibration.DefaultMinSampleConfidence),
		CalibrationRetryDelay:      ptrString(calibration.DefaultRetryDelay.String()),
		FrameInterval:              ptrString(defaultFrameInterval.String()),
	}
}

const defaultFrameInterval = 100 * time.Millisecond

// LoadPostureConfig loads a PostureConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadPostureConfig(path string) (*PostureConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPostureConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *PostureConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/posture/monitor/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadPostureConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *PostureConfig) Validate() error {
	if c.LowConfidenceThreshold != nil && (*c.LowConfidenceThreshold < 0 || *c.LowConfidenceThreshold > 1) {
		return fmt.Errorf("low_confidence_threshold must be between 0 and 1, got %f", *c.LowConfidenceThreshold)
	}

	// Zero would mean "unset" to the extractor and calibration params, so
	// these gates must be strictly positive.
	gates := []struct {
		name string
		v    *float64
	}{
		{"min_keypoint_score", c.MinKeypointScore},
		{"calibration_min_confidence", c.CalibrationMinConfidence},
	}
	for _, f := range gates {
		if f.v != nil && (*f.v <= 0 || *f.v > 1) {
			return fmt.Errorf("%s must be greater than 0 and at most 1, got %f", f.name, *f.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *float64
	}{
		{"slouch_tolerance", c.SlouchTolerance},
		{"lean_tolerance", c.LeanTolerance},
		{"angle_tolerance", c.AngleTolerance},
	}
	for _, f := range nonNegative {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %f", f.name, *f.v)
		}
	}

	if c.CalibrationMaxAttempts != nil && *c.CalibrationMaxAttempts < 1 {
		return fmt.Errorf("calibration_max_attempts must be at least 1, got %d", *c.CalibrationMaxAttempts)
	}
	if c.CalibrationRequiredSamples != nil && *c.CalibrationRequiredSamples < 1 {
		return fmt.Errorf("calibration_required_samples must be at least 1, got %d", *c.CalibrationRequiredSamples)
	}
	if c.CalibrationRequiredSamples != nil && *c.CalibrationRequiredSamples > c.GetCalibrationMaxAttempts() {
		return fmt.Errorf("calibration_required_samples (%d) exceeds calibration_max_attempts (%d)",
			*c.CalibrationRequiredSamples, c.GetCalibrationMaxAttempts())
	}

	if c.CalibrationRetryDelay != nil && *c.CalibrationRetryDelay != "" {
		if d, err := time.ParseDuration(*c.CalibrationRetryDelay); err != nil {
			return fmt.Errorf("invalid calibration_retry_delay '%s': %w", *c.CalibrationRetryDelay, err)
		} else if d < 0 {
			return fmt.Errorf("calibration_retry_delay must be non-negative, got %s", d)
		}
	}
	if c.FrameInterval != nil && *c.FrameInterval != "" {
		if d, err := time.ParseDuration(*c.FrameInterval); err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		} else if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}

	return nil
}

// GetMinKeypointScore returns the min_keypoint_score value or the default.
func (c *PostureConfig) GetMinKeypointScore() float64 {
	if c.MinKeypointScore == nil {
		return keypoints.MinScore
	}
	return *c.MinKeypointScore
}

// GetThresholds assembles the classifier thresholds.
func (c *PostureConfig) GetThresholds() classify.Thresholds {
	th := classify.DefaultThresholds()
	if c.LowConfidenceThreshold != nil {
		th.MinConfidence = *c.LowConfidenceThreshold
	}
	if c.NoseSlouchTolerance != nil {
		th.NoseSlouchTolerance = *c.NoseSlouchTolerance
	}
	if c.SlouchTolerance != nil {
		th.SlouchTolerance = *c.SlouchTolerance
	}
	if c.LeanTolerance != nil {
		th.LeanTolerance = *c.LeanTolerance
	}
	if c.AngleTolerance != nil {
		th.AngleTolerance = *c.AngleTolerance
	}
	if c.ForwardHeadTolerance != nil {
		th.ForwardHeadTolerance = *c.ForwardHeadTolerance
	}
	return th
}

// GetCalibrationMaxAttempts returns the calibration_max_attempts value or the default.
func (c *PostureConfig) GetCalibrationMaxAttempts() int {
	if c.CalibrationMaxAttempts == nil {
		return calibration.DefaultMaxAttempts
	}
	return *c.CalibrationMaxAttempts
}

// GetCalibrationRetryDelay parses the calibration_retry_delay value.
func (c *PostureConfig) GetCalibrationRetryDelay() time.Duration {
	if c.CalibrationRetryDelay == nil || *c.CalibrationRetryDelay == "" {
		return calibration.DefaultRetryDelay
	}
	d, err := time.ParseDuration(*c.CalibrationRetryDelay)
	if err != nil {
		return calibration.DefaultRetryDelay // default on parse error
	}
	return d
}

// GetCalibrationParams assembles the calibration bounds.
func (c *PostureConfig) GetCalibrationParams() calibration.Params {
	p := calibration.DefaultParams()
	p.MaxAttempts = c.GetCalibrationMaxAttempts()
	if c.CalibrationRequiredSamples != nil {
		p.RequiredSamples = *c.CalibrationRequiredSamples
	}
	if c.CalibrationMinConfidence != nil {
		p.MinSampleConfidence = *c.CalibrationMinConfidence
	}
	p.RetryDelay = c.GetCalibrationRetryDelay()
	return p
}

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
func (c *PostureConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return defaultFrameInterval
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return defaultFrameInterval
	}
	return d
}

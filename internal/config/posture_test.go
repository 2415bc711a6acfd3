package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/posture/calibration"
	"github.com/banshee-data/posture.report/internal/posture/classify"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultPostureConfig(t *testing.T) {
	cfg := DefaultPostureConfig()
	require.NoError(t, cfg.Validate())

	if diff := cmp.Diff(classify.DefaultThresholds(), cfg.GetThresholds()); diff != "" {
		t.Errorf("thresholds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(calibration.DefaultParams(), cfg.GetCalibrationParams()); diff != "" {
		t.Errorf("calibration params mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.3, cfg.GetMinKeypointScore())
	assert.Equal(t, 100*time.Millisecond, cfg.GetFrameInterval())
}

func TestEmptyPostureConfig_Defaults(t *testing.T) {
	cfg := EmptyPostureConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, classify.DefaultThresholds(), cfg.GetThresholds())
	assert.Equal(t, calibration.DefaultParams(), cfg.GetCalibrationParams())
	assert.Equal(t, 300*time.Millisecond, cfg.GetCalibrationRetryDelay())
	assert.Equal(t, 100*time.Millisecond, cfg.GetFrameInterval())
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultPostureConfig(), fromFile); diff != "" {
		t.Errorf("%s drifted from DefaultPostureConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadPostureConfig_Partial(t *testing.T) {
	path := writeConfig(t, "posture.json", `{
  "nose_slouch_tolerance": 70,
  "calibration_required_samples": 5,
  "calibration_retry_delay": "1s"
}`)

	cfg, err := LoadPostureConfig(path)
	require.NoError(t, err)

	th := cfg.GetThresholds()
	assert.Equal(t, 70.0, th.NoseSlouchTolerance)
	assert.Equal(t, classify.DefaultLeanTolerance, th.LeanTolerance)

	p := cfg.GetCalibrationParams()
	assert.Equal(t, 5, p.RequiredSamples)
	assert.Equal(t, calibration.DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, time.Second, p.RetryDelay)
}

func TestLoadPostureConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"extension", "posture.yaml", `{}`, ".json extension"},
		{"bad json", "posture.json", `{`, "failed to parse config JSON"},
		{"score range", "posture.json", `{"min_keypoint_score": 1.5}`, "min_keypoint_score must be greater than 0 and at most 1"},
		{"zero score", "posture.json", `{"min_keypoint_score": 0}`, "min_keypoint_score must be greater than 0"},
		{"zero sample confidence", "posture.json", `{"calibration_min_confidence": 0}`, "calibration_min_confidence must be greater than 0"},
		{"low confidence range", "posture.json", `{"low_confidence_threshold": -0.1}`, "low_confidence_threshold must be between 0 and 1"},
		{"negative lean", "posture.json", `{"lean_tolerance": -1}`, "lean_tolerance must be non-negative"},
		{"attempts", "posture.json", `{"calibration_max_attempts": 0}`, "calibration_max_attempts must be at least 1"},
		{"samples over attempts", "posture.json", `{"calibration_required_samples": 11}`, "exceeds calibration_max_attempts"},
		{"delay", "posture.json", `{"calibration_retry_delay": "soon"}`, "invalid calibration_retry_delay"},
		{"frame interval", "posture.json", `{"frame_interval": "0s"}`, "frame_interval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPostureConfig(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadPostureConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to stat config file"))
}

func TestLoadPostureConfig_TooLarge(t *testing.T) {
	body := `{"lean_tolerance": 15` + strings.Repeat(" ", 1024*1024) + `}`
	_, err := LoadPostureConfig(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file too large")
}

func TestValidate_ZeroLowConfidenceThresholdIsHonoured(t *testing.T) {
	cfg, err := LoadPostureConfig(writeConfig(t, "posture.json", `{"low_confidence_threshold": 0}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.GetThresholds().MinConfidence)
}

func TestValidate_GatesReachDownstreamUnchanged(t *testing.T) {
	cfg, err := LoadPostureConfig(writeConfig(t, "posture.json",
		`{"min_keypoint_score": 0.05, "calibration_min_confidence": 0.01}`))
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.GetMinKeypointScore())
	assert.Equal(t, 0.01, cfg.GetCalibrationParams().WithDefaults().MinSampleConfidence)
}

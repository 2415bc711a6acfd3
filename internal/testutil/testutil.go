// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/posture.report/internal/posture/keypoints"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewJSONRequest creates a test HTTP request carrying a JSON body.
func NewJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// UprightFrame is a seated user facing the camera: level shoulders 100px
// apart, hips straight below, nose 80px above the shoulder line. Every
// keypoint carries the given score.
func UprightFrame(score float64) keypoints.Frame {
	return keypoints.Frame{
		{Name: keypoints.Nose, X: 150, Y: 120, Score: score},
		{Name: keypoints.LeftShoulder, X: 100, Y: 200, Score: score},
		{Name: keypoints.RightShoulder, X: 200, Y: 200, Score: score},
		{Name: keypoints.LeftHip, X: 110, Y: 400, Score: score},
		{Name: keypoints.RightHip, X: 190, Y: 400, Score: score},
	}
}

// ShiftFrame returns a copy of frame with the named keypoints moved by
// (dx, dy). With no names every keypoint moves.
func ShiftFrame(frame keypoints.Frame, dx, dy float64, names ...keypoints.Name) keypoints.Frame {
	out := make(keypoints.Frame, len(frame))
	copy(out, frame)
	for i := range out {
		if len(names) > 0 && !containsName(names, out[i].Name) {
			continue
		}
		out[i].X += dx
		out[i].Y += dy
	}
	return out
}

func containsName(names []keypoints.Name, n keypoints.Name) bool {
	for _, m := range names {
		if m == n {
			return true
		}
	}
	return false
}

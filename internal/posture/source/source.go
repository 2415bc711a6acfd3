// Package source provides PoseSource implementations that stand in for the
// external pose estimator: a JSON-lines replay of recorded frames and a
// holder for the latest frame pushed over the API.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/posture.report/internal/posture/keypoints"
)

// ErrExhausted is returned by a non-looping ReplaySource after its last frame.
var ErrExhausted = errors.New("replay exhausted")

// maxLineBytes bounds a single JSON-lines record.
const maxLineBytes = 1 << 20

// ParseFrame decodes one frame (a JSON array of keypoints) and validates it.
func ParseFrame(data []byte) (keypoints.Frame, error) {
	var frame keypoints.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("failed to parse frame JSON: %w", err)
	}
	if err := Validate(frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Validate checks keypoint names against the vocabulary and scores against [0,1].
func Validate(frame keypoints.Frame) error {
	for i, kp := range frame {
		if !kp.Name.Valid() {
			return fmt.Errorf("keypoint %d: unknown name %q", i, kp.Name)
		}
		if kp.Score < 0 || kp.Score > 1 {
			return fmt.Errorf("keypoint %d (%s): score %v outside [0,1]", i, kp.Name, kp.Score)
		}
	}
	return nil
}

// ReplaySource serves frames recorded one JSON array per line. Blank lines
// are skipped; an empty array records a frame with no person.
type ReplaySource struct {
	mu     sync.Mutex
	frames []keypoints.Frame
	next   int
	loop   bool
}

// NewReplaySource reads every frame from r.
func NewReplaySource(r io.Reader, loop bool) (*ReplaySource, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var frames []keypoints.Frame
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		frame, err := ParseFrame(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, errors.New("replay contains no frames")
	}
	return &ReplaySource{frames: frames, loop: loop}, nil
}

// OpenReplay loads a .jsonl replay file.
func OpenReplay(path string, loop bool) (*ReplaySource, error) {
	cleanPath := filepath.Clean(path)
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer f.Close()
	return NewReplaySource(f, loop)
}

// Len returns the number of recorded frames.
func (s *ReplaySource) Len() int {
	return len(s.frames)
}

// NextPose returns the next recorded frame.
func (s *ReplaySource) NextPose(ctx context.Context) (keypoints.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.frames) {
		if !s.loop {
			return nil, ErrExhausted
		}
		s.next = 0
	}
	frame := s.frames[s.next]
	s.next++
	return frame, nil
}

// LatestSource hands out the most recently pushed frame, once. Until the
// next push it reports no person, so a caller sampling faster than frames
// arrive never counts the same estimate twice.
type LatestSource struct {
	mu     sync.Mutex
	frame  keypoints.Frame
	seq    uint64
	served uint64
}

// NewLatestSource creates an empty LatestSource.
func NewLatestSource() *LatestSource {
	return &LatestSource{}
}

// Push replaces the held frame.
func (s *LatestSource) Push(frame keypoints.Frame) {
	cp := append(keypoints.Frame(nil), frame...)
	s.mu.Lock()
	s.frame = cp
	s.seq++
	s.mu.Unlock()
}

// Seq counts pushes so far.
func (s *LatestSource) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// NextPose returns the held frame if it has not been returned before, and an
// empty frame otherwise.
func (s *LatestSource) NextPose(ctx context.Context) (keypoints.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served == s.seq {
		return nil, nil
	}
	s.served = s.seq
	return s.frame, nil
}

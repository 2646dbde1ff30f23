package capture

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource serves fixed frames per camera for testing.
type MockSource struct {
	mu     sync.Mutex
	frames map[string]*gocv.Mat
	err    error
	calls  int
}

func NewMockSource() *MockSource {
	return &MockSource{frames: make(map[string]*gocv.Mat)}
}

// SetFrame sets the frame returned for camera. The mock does not take
// ownership of frame.
func (s *MockSource) SetFrame(camera string, frame *gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[camera] = frame
}

// SetError makes every Latest call fail with err.
func (s *MockSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times Latest was called.
func (s *MockSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *MockSource) Latest(ctx context.Context, camera string) (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	frame, ok := s.frames[camera]
	if !ok {
		return nil, fmt.Errorf("no frame for camera %s", camera)
	}

	// Clone so callers can close their copy
	clone := frame.Clone()
	return &clone, nil
}

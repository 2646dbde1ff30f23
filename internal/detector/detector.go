// Package detector classifies hand gestures in camera frames.
package detector

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/types"
)

// Classifier recognizes the dominant hand gesture in a frame.
type Classifier interface {
	// Classify returns the gesture and hand region of the most prominent
	// qualifying hand. A frame without one yields an empty Classification.
	Classify(frame *gocv.Mat) (Classification, error)

	// Close releases any resources held by the classifier.
	Close() error
}

// Classification is the result of classifying one frame.
type Classification struct {
	Gesture string
	Hand    *types.Box
}

// Found reports whether both a gesture and its hand region were recognized.
func (c Classification) Found() bool {
	return c.Gesture != "" && c.Hand != nil
}

// Config holds the hand filtering thresholds.
type Config struct {
	// HandSize is the minimum hand box area in pixels.
	HandSize int

	// Confidence is the minimum gesture score (0.0-1.0).
	Confidence float64

	// Python is the interpreter used for the MediaPipe service. Empty means
	// a venv interpreter if one is found, otherwise python3.
	Python string

	// Script is the path to gesture_service.py. Empty means search the
	// default locations.
	Script string

	// Timeout bounds one frame round trip and the service shutdown.
	// Zero means 10 seconds.
	Timeout time.Duration
}

// DefaultConfig returns a Config with the stock thresholds.
func DefaultConfig() Config {
	return Config{
		HandSize:   9000,
		Confidence: 0.75,
	}
}

// Package types holds the value types shared between the detection pipeline,
// the publisher and the status API.
package types

import (
	"encoding/json"
	"math"
)

// UnknownPerson is the person label used when a frame is attributed to an
// unrecognized face.
const UnknownPerson = "unknown"

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns width × height, or 0 for degenerate boxes.
func (b Box) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// FaceResolution records whether face recognition took part in a cycle and
// the raw payload it returned.
type FaceResolution struct {
	Used bool            `json:"used"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// StatusRecord is the unit published per camera per cycle.
// Field order is the wire order.
type StatusRecord struct {
	ProcessID        string         `json:"process_id"`
	Camera           string         `json:"camera"`
	Person           string         `json:"person"`
	Gesture          string         `json:"gesture"`
	TimestampSeconds int64          `json:"timestamp"`
	DurationSeconds  float64        `json:"duration"`
	FaceResolution   FaceResolution `json:"face_resolution"`
	HandRegion       *Box           `json:"hand_region,omitempty"`
}

// Empty returns the neutral record for a camera: nobody, no gesture.
func Empty(camera string) StatusRecord {
	return StatusRecord{Camera: camera}
}

// IsEmpty reports whether the record carries neither a person nor a gesture.
func (r StatusRecord) IsEmpty() bool {
	return r.Person == "" && r.Gesture == ""
}

// SameState reports whether two records describe the same observable state.
// ProcessID, timestamp, duration and the face payload vary every cycle and
// are ignored.
func (r StatusRecord) SameState(other StatusRecord) bool {
	if r.Camera != other.Camera || r.Person != other.Person || r.Gesture != other.Gesture {
		return false
	}
	switch {
	case r.HandRegion == nil && other.HandRegion == nil:
		return true
	case r.HandRegion == nil || other.HandRegion == nil:
		return false
	default:
		return *r.HandRegion == *other.HandRegion
	}
}

// RoundDuration rounds a duration in seconds to millisecond precision.
func RoundDuration(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

package detector

import (
	"math"

	"github.com/ayusman/mudra/internal/types"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark in normalized image coordinates: x and y in [0, 1]
// relative to frame width and height, z relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Hand is one recognized hand with its gesture label.
type Hand struct {
	Landmarks    HandLandmarks
	Gesture      string
	GestureScore float64
}

// BoundingBox returns the pixel box enclosing all landmarks in a frame of
// the given size, clamped to the frame.
func (h *HandLandmarks) BoundingBox(width, height int) types.Box {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for _, p := range h.Points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	x0 := clamp(int(math.Floor(minX*float64(width))), 0, width)
	y0 := clamp(int(math.Floor(minY*float64(height))), 0, height)
	x1 := clamp(int(math.Ceil(maxX*float64(width))), 0, width)
	y1 := clamp(int(math.Ceil(maxY*float64(height))), 0, height)

	return types.Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Select applies the size and confidence thresholds to hands found in a
// frame of the given size and returns the largest remaining one.
func Select(hands []Hand, width, height int, cfg Config) Classification {
	var (
		best     Classification
		bestArea int
	)
	for _, h := range hands {
		if h.Gesture == "" || h.GestureScore < cfg.Confidence {
			continue
		}
		box := h.Landmarks.BoundingBox(width, height)
		area := box.Area()
		if area < cfg.HandSize || area <= bestArea {
			continue
		}
		best = Classification{Gesture: h.Gesture, Hand: &box}
		bestArea = area
	}
	return best
}

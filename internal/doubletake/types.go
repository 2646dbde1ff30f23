// Package doubletake is a client for the Double-Take face recognition API.
//
// Only the counts + matches/misses/unknowns response shape is supported.
// The later flat "results" shape with match_found/match_confidence is not.
package doubletake

import (
	"encoding/json"

	"github.com/ayusman/mudra/internal/types"
)

// Box is a face bounding box as reported by Double-Take.
type Box struct {
	Top    int `json:"top"`
	Left   int `json:"left"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ToBox converts to the shared pixel box type.
func (b Box) ToBox() types.Box {
	return types.Box{X: b.Left, Y: b.Top, Width: b.Width, Height: b.Height}
}

// Candidate is one recognized (or unrecognized) face.
type Candidate struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Match      bool    `json:"match"`
	Box        Box     `json:"box"`
	Detector   string  `json:"detector,omitempty"`
}

// Counts summarizes the result lists.
type Counts struct {
	Person  int `json:"person"`
	Match   int `json:"match"`
	Miss    int `json:"miss"`
	Unknown int `json:"unknown"`
}

// Response is the body of GET /api/recognize. A body without "counts" or
// "matches" is malformed, see Valid.
type Response struct {
	ID       string      `json:"id"`
	Duration float64     `json:"duration"`
	Camera   string      `json:"camera"`
	Counts   *Counts     `json:"counts"`
	Matches  []Candidate `json:"matches"`
	Misses   []Candidate `json:"misses"`
	Unknowns []Candidate `json:"unknowns"`

	// Raw is the undecoded body, kept for the published face payload.
	Raw json.RawMessage `json:"-"`
}

// Valid reports whether the response carries the fields the resolver needs.
func (r *Response) Valid() bool {
	return r != nil && r.Counts != nil && r.Matches != nil
}

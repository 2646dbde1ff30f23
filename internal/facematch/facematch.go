// Package facematch decides which recognized face, if any, a camera frame
// should be attributed to.
package facematch

import (
	"slices"

	"github.com/ayusman/mudra/internal/doubletake"
	"github.com/ayusman/mudra/internal/types"
)

// Class is the recognition outcome of a face.
type Class string

const (
	ClassMatch   Class = "match"
	ClassMiss    Class = "miss"
	ClassUnknown Class = "unknown"
)

// Tier names the list a resolution came from. TierNone means no candidate
// qualified.
type Tier string

const (
	TierNone    Tier = ""
	TierMatch   Tier = "match"
	TierMiss    Tier = "miss"
	TierUnknown Tier = "unknown"
)

// Candidate is one face from a recognition response.
type Candidate struct {
	Class  Class
	Person string // empty for unknown faces
	Region types.Box
}

// RegionArea returns the candidate's box area.
func (c Candidate) RegionArea() int {
	return c.Region.Area()
}

// AllowList is the set of person names permitted to trigger gesture
// attribution. An empty list allows everyone.
type AllowList []string

// Allows reports whether name may trigger attribution.
func (a AllowList) Allows(name string) bool {
	return len(a) == 0 || slices.Contains(a, name)
}

// Result is the outcome of Resolve.
type Result struct {
	Person  string
	Region  *types.Box
	Proceed bool
	Tier    Tier
}

// Candidates flattens a recognition response into classified candidates in
// response order: matches, then misses, then unknowns.
func Candidates(resp *doubletake.Response) []Candidate {
	if resp == nil {
		return nil
	}

	out := make([]Candidate, 0, len(resp.Matches)+len(resp.Misses)+len(resp.Unknowns))
	for _, m := range resp.Matches {
		out = append(out, Candidate{Class: ClassMatch, Person: m.Name, Region: m.Box.ToBox()})
	}
	for _, m := range resp.Misses {
		out = append(out, Candidate{Class: ClassMiss, Person: m.Name, Region: m.Box.ToBox()})
	}
	for _, u := range resp.Unknowns {
		out = append(out, Candidate{Class: ClassUnknown, Region: u.Box.ToBox()})
	}
	return out
}

// Resolve picks the person a frame should be attributed to.
//
// An allow-listed match always wins, the largest face first. Misses and
// unknowns are considered only when processAll is set: the first
// allow-listed miss, otherwise the largest unknown face. A nil or malformed
// response never proceeds.
func Resolve(resp *doubletake.Response, allow AllowList, processAll bool) Result {
	if !resp.Valid() {
		return Result{}
	}

	candidates := Candidates(resp)

	if c, ok := largest(candidates, func(c Candidate) bool {
		return c.Class == ClassMatch && allow.Allows(c.Person)
	}); ok {
		return found(c.Person, c.Region, TierMatch)
	}

	if !processAll {
		return Result{}
	}

	for _, c := range candidates {
		if c.Class == ClassMiss && allow.Allows(c.Person) {
			return found(c.Person, c.Region, TierMiss)
		}
	}

	if c, ok := largest(candidates, func(c Candidate) bool {
		return c.Class == ClassUnknown
	}); ok {
		return found(types.UnknownPerson, c.Region, TierUnknown)
	}

	return Result{}
}

// largest returns the eligible candidate with the biggest region. Ties keep
// the first one seen.
func largest(candidates []Candidate, eligible func(Candidate) bool) (Candidate, bool) {
	var (
		best Candidate
		ok   bool
	)
	for _, c := range candidates {
		if !eligible(c) {
			continue
		}
		if !ok || c.RegionArea() > best.RegionArea() {
			best, ok = c, true
		}
	}
	return best, ok
}

func found(person string, region types.Box, tier Tier) Result {
	return Result{Person: person, Region: &region, Proceed: true, Tier: tier}
}

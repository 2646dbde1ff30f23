package facematch

import (
	"encoding/json"
	"testing"

	"github.com/ayusman/mudra/internal/doubletake"
	"github.com/ayusman/mudra/internal/types"
)

func face(name string, w, h int) doubletake.Candidate {
	return doubletake.Candidate{Name: name, Box: doubletake.Box{Width: w, Height: h}}
}

func response(matches, misses, unknowns []doubletake.Candidate) *doubletake.Response {
	if matches == nil {
		matches = []doubletake.Candidate{}
	}
	return &doubletake.Response{
		Counts:   &doubletake.Counts{Match: len(matches), Miss: len(misses), Unknown: len(unknowns)},
		Matches:  matches,
		Misses:   misses,
		Unknowns: unknowns,
	}
}

func TestAllowList_Allows(t *testing.T) {
	tests := []struct {
		name  string
		allow AllowList
		who   string
		want  bool
	}{
		{"nil allows all", nil, "anyone", true},
		{"empty allows all", AllowList{}, "anyone", true},
		{"listed", AllowList{"alice", "carol"}, "carol", true},
		{"not listed", AllowList{"alice"}, "bob", false},
		{"case sensitive", AllowList{"alice"}, "Alice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.allow.Allows(tt.who); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.who, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		resp        *doubletake.Response
		allow       AllowList
		processAll  bool
		wantProceed bool
		wantPerson  string
		wantArea    int
		wantTier    Tier
	}{
		{
			name: "nil response",
			resp: nil,
		},
		{
			name: "missing matches list",
			resp: &doubletake.Response{Counts: &doubletake.Counts{}},
		},
		{
			name: "missing counts",
			resp: &doubletake.Response{Matches: []doubletake.Candidate{face("alice", 10, 10)}},
		},
		{
			name:        "largest allow-listed match wins",
			resp:        response([]doubletake.Candidate{face("alice", 20, 25), face("bob", 30, 30)}, nil, nil),
			allow:       AllowList{"alice"},
			wantProceed: true,
			wantPerson:  "alice",
			wantArea:    500,
			wantTier:    TierMatch,
		},
		{
			name:        "empty allow list takes largest match",
			resp:        response([]doubletake.Candidate{face("alice", 20, 25), face("bob", 30, 30)}, nil, nil),
			wantProceed: true,
			wantPerson:  "bob",
			wantArea:    900,
			wantTier:    TierMatch,
		},
		{
			name:        "equal areas keep first seen",
			resp:        response([]doubletake.Candidate{face("carol", 10, 40), face("dave", 20, 20)}, nil, nil),
			wantProceed: true,
			wantPerson:  "carol",
			wantArea:    400,
			wantTier:    TierMatch,
		},
		{
			name:        "match short-circuits misses even with processAll",
			resp:        response([]doubletake.Candidate{face("alice", 5, 5)}, []doubletake.Candidate{face("bob", 50, 50)}, nil),
			processAll:  true,
			wantProceed: true,
			wantPerson:  "alice",
			wantArea:    25,
			wantTier:    TierMatch,
		},
		{
			name: "no match and processAll off",
			resp: response(nil, []doubletake.Candidate{face("alice", 50, 50)}, []doubletake.Candidate{face("unknown", 50, 50)}),
		},
		{
			name:  "only non-allow-listed matches and processAll off",
			resp:  response([]doubletake.Candidate{face("bob", 50, 50)}, nil, nil),
			allow: AllowList{"alice"},
		},
		{
			name: "miss wins over unknown",
			resp: response(nil,
				[]doubletake.Candidate{face("alice", 5, 5), face("carol", 30, 30)},
				[]doubletake.Candidate{face("unknown", 100, 100)}),
			processAll:  true,
			wantProceed: true,
			wantPerson:  "alice",
			wantArea:    25,
			wantTier:    TierMiss,
		},
		{
			name:        "first allow-listed miss, not the largest",
			resp:        response(nil, []doubletake.Candidate{face("bob", 90, 90), face("carol", 5, 5), face("alice", 60, 60)}, nil),
			allow:       AllowList{"alice", "carol"},
			processAll:  true,
			wantProceed: true,
			wantPerson:  "carol",
			wantArea:    25,
			wantTier:    TierMiss,
		},
		{
			name: "largest unknown when no miss qualifies",
			resp: response(nil,
				[]doubletake.Candidate{face("bob", 90, 90)},
				[]doubletake.Candidate{face("x", 10, 10), face("y", 30, 20), face("z", 20, 30)}),
			allow:       AllowList{"alice"},
			processAll:  true,
			wantProceed: true,
			wantPerson:  types.UnknownPerson,
			wantArea:    600,
			wantTier:    TierUnknown,
		},
		{
			name:       "nothing at all",
			resp:       response(nil, nil, nil),
			processAll: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.resp, tt.allow, tt.processAll)

			if got.Proceed != tt.wantProceed {
				t.Fatalf("Proceed = %v, want %v", got.Proceed, tt.wantProceed)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("Tier = %q, want %q", got.Tier, tt.wantTier)
			}
			if !tt.wantProceed {
				if got.Person != "" || got.Region != nil {
					t.Errorf("non-proceeding result should be empty, got %+v", got)
				}
				return
			}
			if got.Person != tt.wantPerson {
				t.Errorf("Person = %q, want %q", got.Person, tt.wantPerson)
			}
			if got.Region == nil {
				t.Fatal("Region should be set")
			}
			if got.Region.Area() != tt.wantArea {
				t.Errorf("Region area = %d, want %d", got.Region.Area(), tt.wantArea)
			}
		})
	}
}

func TestResolve_FrontScenario(t *testing.T) {
	body := []byte(`{
		"camera": "front",
		"counts": {"person": 2, "match": 2, "miss": 0, "unknown": 0},
		"matches": [
			{"name": "alice", "confidence": 88, "match": true, "box": {"top": 100, "left": 40, "width": 20, "height": 25}},
			{"name": "bob", "confidence": 95, "match": true, "box": {"top": 80, "left": 300, "width": 30, "height": 30}}
		],
		"misses": [],
		"unknowns": []
	}`)

	var resp doubletake.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := Resolve(&resp, AllowList{"alice"}, false)
	if !got.Proceed || got.Person != "alice" {
		t.Fatalf("Resolve() = %+v, want alice", got)
	}
	want := types.Box{X: 40, Y: 100, Width: 20, Height: 25}
	if *got.Region != want {
		t.Errorf("Region = %+v, want %+v", *got.Region, want)
	}
}

func TestCandidates(t *testing.T) {
	resp := response(
		[]doubletake.Candidate{face("alice", 1, 1)},
		[]doubletake.Candidate{face("bob", 2, 2)},
		[]doubletake.Candidate{face("unknown", 3, 3)},
	)

	got := Candidates(resp)
	if len(got) != 3 {
		t.Fatalf("Candidates() len = %d, want 3", len(got))
	}
	if got[0].Class != ClassMatch || got[1].Class != ClassMiss || got[2].Class != ClassUnknown {
		t.Errorf("classes = %s %s %s", got[0].Class, got[1].Class, got[2].Class)
	}
	if got[2].Person != "" {
		t.Errorf("unknown candidates carry no person, got %q", got[2].Person)
	}
	if Candidates(nil) != nil {
		t.Error("Candidates(nil) should be nil")
	}
}

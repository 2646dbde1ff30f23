package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/ayusman/mudra/internal/types"
)

func TestCamera_PersonCount(t *testing.T) {
	c := NewCamera("front")

	if c.PersonCount() != 0 {
		t.Errorf("initial PersonCount() = %d, want 0", c.PersonCount())
	}

	c.SetPersonCount(3)
	if c.PersonCount() != 3 {
		t.Errorf("PersonCount() = %d, want 3", c.PersonCount())
	}

	c.SetPersonCount(-2)
	if c.PersonCount() != 0 {
		t.Errorf("negative count should clamp to 0, got %d", c.PersonCount())
	}
}

func TestCamera_LastPublished(t *testing.T) {
	c := NewCamera("front")

	if _, ok := c.LastPublished(); ok {
		t.Fatal("LastPublished() should be unset initially")
	}

	rec := types.StatusRecord{Camera: "front", Person: "alice", Gesture: "thumbs_up"}
	c.SetLastPublished(rec)

	got, ok := c.LastPublished()
	if !ok {
		t.Fatal("LastPublished() should be set")
	}
	if got.Person != "alice" || got.Gesture != "thumbs_up" {
		t.Errorf("LastPublished() = %+v", got)
	}

	// mutating the caller's copy must not leak into the stored record
	rec.Person = "mallory"
	got, _ = c.LastPublished()
	if got.Person != "alice" {
		t.Errorf("stored record changed through caller copy: %+v", got)
	}
}

func TestCamera_Snapshot(t *testing.T) {
	c := NewCamera("back")
	c.SetPersonCount(1)

	s := c.Snapshot()
	if s.Name != "back" || s.PersonCount != 1 || s.LastPublished != nil {
		t.Errorf("Snapshot() = %+v", s)
	}

	c.SetLastPublished(types.Empty("back"))
	if c.Snapshot().LastPublished == nil {
		t.Error("Snapshot() should include the last published record")
	}
}

func TestCamera_ConcurrentAccess(t *testing.T) {
	c := NewCamera("front")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.SetPersonCount(n)
			c.SetLastPublished(types.StatusRecord{Camera: "front"})
		}(i)
		go func() {
			defer wg.Done()
			_ = c.Snapshot()
		}()
	}
	wg.Wait()
}

func TestRegistry(t *testing.T) {
	r := NewRegistry([]string{"front", "back", "front", "garage"})

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	cams := r.Cameras()
	want := []string{"front", "back", "garage"}
	for i, c := range cams {
		if c.Name() != want[i] {
			t.Errorf("Cameras()[%d] = %q, want %q", i, c.Name(), want[i])
		}
	}

	names := r.Names()
	if names[0] != "back" || names[1] != "front" || names[2] != "garage" {
		t.Errorf("Names() = %v, want sorted", names)
	}

	if _, err := r.Get("front"); err != nil {
		t.Errorf("Get(front) error = %v", err)
	}
	if _, err := r.Get("attic"); !errors.Is(err, ErrUnknownCamera) {
		t.Errorf("Get(attic) error = %v, want ErrUnknownCamera", err)
	}
}

package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/mqtt"
	"github.com/ayusman/mudra/internal/publisher"
	"github.com/ayusman/mudra/internal/state"
	"github.com/ayusman/mudra/internal/types"
)

// scriptedEvaluator returns a fixed record per camera and counts calls.
type scriptedEvaluator struct {
	mu      sync.Mutex
	records map[string]types.StatusRecord
	panics  bool
	calls   int
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context, cam *state.Camera) types.StatusRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if e.panics {
		panic("boom")
	}
	if rec, ok := e.records[cam.Name()]; ok {
		rec.ProcessID = time.Now().String()
		return rec
	}
	return types.Empty(cam.Name())
}

func (e *scriptedEvaluator) set(camera string, rec types.StatusRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records[camera] = rec
}

func (e *scriptedEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func newSchedulerFixture(cameras ...string) (*Scheduler, *scriptedEvaluator, *mqtt.Fake) {
	registry := state.NewRegistry(cameras)
	eval := &scriptedEvaluator{records: make(map[string]types.StatusRecord)}
	transport := mqtt.NewFake()
	pub := publisher.New("gestures", transport)
	return NewScheduler(registry, eval, pub, 10*time.Millisecond), eval, transport
}

func statusMessages(t *testing.T, msgs []mqtt.Message, topic string) []types.StatusRecord {
	t.Helper()

	var out []types.StatusRecord
	for _, m := range msgs {
		if m.Topic != topic {
			continue
		}
		var rec types.StatusRecord
		if err := json.Unmarshal(m.Payload, &rec); err != nil {
			t.Fatalf("invalid payload on %s: %v", topic, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestScheduler_Start(t *testing.T) {
	s, _, transport := newSchedulerFixture("front", "back")

	s.Start()

	msgs := transport.Messages()
	if len(msgs) != 3 {
		t.Fatalf("published %d messages, want 3", len(msgs))
	}
	if msgs[0].Topic != "gestures/availability" || string(msgs[0].Payload) != publisher.Online || !msgs[0].Retain {
		t.Errorf("first message = %+v, want retained online availability", msgs[0])
	}
	for _, camera := range []string{"front", "back"} {
		recs := statusMessages(t, msgs, "gestures/"+camera)
		if len(recs) != 1 || !recs[0].IsEmpty() || recs[0].Camera != camera {
			t.Errorf("%s: initial records = %+v", camera, recs)
		}
	}
}

func TestScheduler_CycleDeduplicates(t *testing.T) {
	s, eval, transport := newSchedulerFixture("front")
	cam, _ := s.registry.Get("front")
	ctx := context.Background()

	s.Start()

	// unchanged empty state
	s.Cycle(ctx, cam)
	if n := len(statusMessages(t, transport.Messages(), "gestures/front")); n != 1 {
		t.Fatalf("after empty cycle: %d status messages, want 1", n)
	}

	hand := &types.Box{X: 1, Y: 1, Width: 100, Height: 100}
	eval.set("front", types.StatusRecord{Camera: "front", Person: "alice", Gesture: "Thumb_Up", HandRegion: hand})

	s.Cycle(ctx, cam)
	s.Cycle(ctx, cam)

	recs := statusMessages(t, transport.Messages(), "gestures/front")
	if len(recs) != 2 {
		t.Fatalf("got %d status messages, want 2", len(recs))
	}
	if recs[1].Person != "alice" || recs[1].Gesture != "Thumb_Up" {
		t.Errorf("second record = %+v", recs[1])
	}

	// back to nobody
	eval.set("front", types.Empty("front"))
	s.Cycle(ctx, cam)

	recs = statusMessages(t, transport.Messages(), "gestures/front")
	if len(recs) != 3 || !recs[2].IsEmpty() {
		t.Errorf("records = %+v, want a trailing empty record", recs)
	}
	if eval.Calls() != 4 {
		t.Errorf("Evaluate called %d times, want 4", eval.Calls())
	}
}

func TestScheduler_CyclePublishFailure(t *testing.T) {
	s, eval, transport := newSchedulerFixture("front")
	cam, _ := s.registry.Get("front")
	eval.set("front", types.StatusRecord{Camera: "front", Gesture: "Victory"})

	transport.SetError(mqtt.ErrNotConnected)
	s.Cycle(context.Background(), cam)

	if _, ok := cam.LastPublished(); ok {
		t.Fatal("failed publish must not update the last published record")
	}

	// the next cycle retries the same state
	transport.SetError(nil)
	s.Cycle(context.Background(), cam)

	if recs := statusMessages(t, transport.Messages(), "gestures/front"); len(recs) != 1 || recs[0].Gesture != "Victory" {
		t.Errorf("records = %+v", recs)
	}
}

func TestScheduler_CycleRecoversPanic(t *testing.T) {
	s, eval, transport := newSchedulerFixture("front")
	cam, _ := s.registry.Get("front")
	eval.panics = true

	s.Cycle(context.Background(), cam)

	if len(transport.Messages()) != 0 {
		t.Error("nothing should be published by a panicking cycle")
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s, eval, _ := newSchedulerFixture("front", "back")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for eval.Calls() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if eval.Calls() < 4 {
		t.Fatalf("Evaluate called %d times, want at least 4", eval.Calls())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

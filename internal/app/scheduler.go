package app

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/state"
	"github.com/ayusman/mudra/internal/types"
)

// Evaluator produces a camera's status record for one cycle.
type Evaluator interface {
	Evaluate(ctx context.Context, cam *state.Camera) types.StatusRecord
}

// StatusPublisher sends status records. *publisher.Publisher implements it.
type StatusPublisher interface {
	Announce() error
	Publish(cam *state.Camera, rec types.StatusRecord) (bool, error)
	Reset(cam *state.Camera) error
}

// Scheduler runs one evaluation loop per camera.
type Scheduler struct {
	registry  *state.Registry
	evaluator Evaluator
	publisher StatusPublisher
	interval  time.Duration
}

// NewScheduler creates a scheduler ticking every interval per camera.
func NewScheduler(registry *state.Registry, evaluator Evaluator, publisher StatusPublisher, interval time.Duration) *Scheduler {
	return &Scheduler{
		registry:  registry,
		evaluator: evaluator,
		publisher: publisher,
		interval:  interval,
	}
}

// Start announces availability and publishes the empty state of every
// camera.
func (s *Scheduler) Start() {
	if err := s.publisher.Announce(); err != nil {
		log.Warnf("failed to announce availability: %v", err)
	}
	for _, cam := range s.registry.Cameras() {
		if err := s.publisher.Reset(cam); err != nil {
			log.WithField("camera", cam.Name()).Warnf("failed to publish initial state: %v", err)
		}
	}
}

// Run starts the camera loops and blocks until ctx is cancelled and every
// loop has returned. A cycle in flight at cancellation runs to completion.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start()

	var wg sync.WaitGroup
	for _, cam := range s.registry.Cameras() {
		wg.Add(1)
		go func(cam *state.Camera) {
			defer wg.Done()
			s.loop(ctx, cam)
		}(cam)
	}

	log.WithFields(log.Fields{
		"cameras":  s.registry.Len(),
		"interval": s.interval,
	}).Info("scheduler started")

	wg.Wait()
	log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, cam *state.Camera) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Cycles are not interrupted by shutdown.
	cycleCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cycle(cycleCtx, cam)
		}
	}
}

// Cycle evaluates and publishes one camera. A panic is logged and contained
// so the camera's loop keeps running.
func (s *Scheduler) Cycle(ctx context.Context, cam *state.Camera) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"camera":  cam.Name(),
				"elapsed": time.Since(start).Round(time.Millisecond),
			}).Errorf("cycle panicked: %v", r)
		}
	}()

	// Evaluate returns the empty record without network calls when the
	// camera sees nobody.
	rec := s.evaluator.Evaluate(ctx, cam)

	if _, err := s.publisher.Publish(cam, rec); err != nil {
		log.WithFields(log.Fields{
			"camera":     cam.Name(),
			"process_id": rec.ProcessID,
		}).Warnf("failed to publish status: %v", err)
	}
}

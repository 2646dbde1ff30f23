// Package app wires the mudra components together and runs the service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/archive"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/doubletake"
	"github.com/ayusman/mudra/internal/frigate"
	"github.com/ayusman/mudra/internal/mqtt"
	"github.com/ayusman/mudra/internal/occupancy"
	"github.com/ayusman/mudra/internal/publisher"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/state"
	"github.com/ayusman/mudra/internal/store"
)

// shutdownTimeout bounds the status API drain on exit.
const shutdownTimeout = 5 * time.Second

// CameraLister discovers camera names. *frigate.Client implements it.
type CameraLister interface {
	Cameras(ctx context.Context) ([]string, error)
}

// App is the running service.
type App struct {
	cfg        *config.Config
	registry   *state.Registry
	broker     *mqtt.Client
	store      *store.Store
	classifier detector.Classifier
	pipeline   *Pipeline
	publisher  *publisher.Publisher
	feed       *occupancy.Feed
	scheduler  *Scheduler
	server     *server.Server
}

// ResolveCameras returns the configured camera list, or the cameras Frigate
// reports when none are configured. Discovery failure yields no cameras.
func ResolveCameras(ctx context.Context, cfg *config.Config, lister CameraLister) []string {
	if len(cfg.Frigate.Cameras) > 0 {
		return cfg.Frigate.Cameras
	}

	cameras, err := lister.Cameras(ctx)
	if err != nil {
		log.Errorf("failed to discover cameras from frigate: %v", err)
		return []string{}
	}

	out := make([]string, 0, len(cameras))
	for _, name := range cameras {
		if err := config.ValidateCameraName(name); err != nil {
			log.Warnf("skipping discovered camera: %v", err)
			continue
		}
		out = append(out, name)
	}
	return out
}

// New builds the service for the given cameras. Nothing is connected until
// Run.
func New(cfg *config.Config, cameras []string) (*App, error) {
	a := &App{
		cfg:      cfg,
		registry: state.NewRegistry(cameras),
	}

	pub := publisher.New(cfg.Gesture.Topic, nil)
	a.broker = mqtt.NewClient(cfg.MQTT, &mqtt.Will{
		Topic:   pub.AvailabilityTopic(),
		Payload: publisher.Offline,
	})
	a.publisher = publisher.New(cfg.Gesture.Topic, a.broker)

	var index archive.Index
	if cfg.Store.Path != "" {
		st, err := store.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.store = st
		index = st.Snapshots()
		a.publisher.WithHistory(st.Events(), cfg.Store.History)
	}

	fr := frigate.NewClient(cfg.Frigate.BaseURL(), cfg.Frigate.Timeout)

	var faces FaceRecognizer
	if cfg.DoubleTake != nil {
		faces = doubletake.NewClient(cfg.DoubleTake.BaseURL(), fr.FrameURL, cfg.DoubleTake.Timeout)
	}

	a.classifier = newClassifier(cfg)

	a.pipeline = NewPipeline(PipelineConfig{
		Faces:      faces,
		Frames:     capture.NewSnapshotSource(fr),
		Classifier: a.classifier,
		Archiver:   archive.New(cfg.Archive, index),
		Policy:     cfg,
		Allow:      cfg.Gesture.AllowedPersons,
	})

	a.feed = occupancy.NewFeed(cfg.Frigate.TopicPrefix, a.registry)
	a.scheduler = NewScheduler(a.registry, a.pipeline, a.publisher, cfg.Gesture.Interval)

	if cfg.Server.Addr != "" {
		a.server = server.New(server.Config{
			Addr:     cfg.Server.Addr,
			Registry: a.registry,
			Store:    a.store,
		})
	}

	return a, nil
}

// newClassifier prefers the MediaPipe service and falls back to a classifier
// that never recognizes anything.
func newClassifier(cfg *config.Config) detector.Classifier {
	dc := detector.Config{
		HandSize:   cfg.Gesture.HandSize,
		Confidence: cfg.Gesture.Confidence,
		Python:     cfg.Classifier.Python,
		Script:     cfg.Classifier.Script,
	}

	mp, err := detector.NewMediaPipeClassifier(dc)
	if err != nil {
		log.Warnf("MediaPipe not available (%v), gestures will not be recognized", err)
		return detector.NewMockClassifier()
	}
	log.Info("using MediaPipe gesture recognition")
	return mp
}

// Run connects to the broker and evaluates every camera until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.registry.Len() == 0 {
		log.Warn("no cameras configured or discovered, nothing to do")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the broker may have published our will while we were away; this also
	// covers a first connect that lands after Connect returned
	a.broker.OnConnected(func() {
		if err := a.publisher.Announce(); err != nil {
			log.Warnf("failed to re-announce availability: %v", err)
		}
	})

	if err := a.broker.Connect(); err != nil {
		return err
	}
	defer a.broker.Disconnect()

	if err := a.feed.Start(a.broker); err != nil {
		return fmt.Errorf("failed to subscribe to person counts: %w", err)
	}

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			serverErr <- a.server.ListenAndServe()
		}()
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		a.scheduler.Run(ctx)
	}()

	var runErr error
	select {
	case <-schedDone:
	case err := <-serverErr:
		if err != nil {
			runErr = err
			log.Errorf("status API failed: %v", err)
		}
		cancel()
		<-schedDone
	}

	a.pipeline.Wait()

	if a.server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("status API shutdown: %v", err)
		}
	}

	if err := a.broker.Publish(a.publisher.AvailabilityTopic(), true, []byte(publisher.Offline)); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		log.Warnf("failed to publish offline availability: %v", err)
	}

	return runErr
}

// Close releases the classifier and the store.
func (a *App) Close() error {
	var errs []error
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close classifier: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

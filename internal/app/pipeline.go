package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/doubletake"
	"github.com/ayusman/mudra/internal/facematch"
	"github.com/ayusman/mudra/internal/state"
	"github.com/ayusman/mudra/internal/types"
)

// FaceRecognizer identifies the faces in a camera's current frame.
type FaceRecognizer interface {
	Recognize(ctx context.Context, camera string) (*doubletake.Response, error)
}

// Archiver stores annotated frames of recognized gestures.
type Archiver interface {
	Enabled() bool
	Archive(frame gocv.Mat, camera, gesture string, hand types.Box, processID string)
}

// Policy answers per-camera face recognition questions. *config.Config
// implements it.
type Policy interface {
	UsesFaceRecognition(camera string) bool
	ProcessAllResults() bool
}

// Pipeline evaluates one camera per call: face resolution, frame fetch,
// gesture classification and archival.
type Pipeline struct {
	faces      FaceRecognizer
	frames     capture.Source
	classifier detector.Classifier
	archiver   Archiver
	policy     Policy
	allow      facematch.AllowList

	newID func() string
	now   func() time.Time

	archiving sync.WaitGroup
	mu        sync.Mutex
	pending   map[string]bool // cameras with an archive write in flight
}

// PipelineConfig holds the collaborators of a Pipeline. Faces and Archiver
// may be nil.
type PipelineConfig struct {
	Faces      FaceRecognizer
	Frames     capture.Source
	Classifier detector.Classifier
	Archiver   Archiver
	Policy     Policy
	Allow      []string
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		faces:      cfg.Faces,
		frames:     cfg.Frames,
		classifier: cfg.Classifier,
		archiver:   cfg.Archiver,
		policy:     cfg.Policy,
		allow:      facematch.AllowList(cfg.Allow),
		newID:      uuid.NewString,
		now:        time.Now,
		pending:    make(map[string]bool),
	}
}

// Evaluate produces the status record for the camera's current state.
// Collaborator failures yield the empty record; they are logged, never
// returned.
func (p *Pipeline) Evaluate(ctx context.Context, cam *state.Camera) types.StatusRecord {
	start := p.now()
	camera := cam.Name()

	rec := types.Empty(camera)
	rec.ProcessID = p.newID()
	rec.TimestampSeconds = start.Unix()

	finish := func(r types.StatusRecord) types.StatusRecord {
		r.DurationSeconds = types.RoundDuration(p.now().Sub(start).Seconds())
		return r
	}

	if cam.PersonCount() == 0 {
		return finish(rec)
	}

	logger := log.WithFields(log.Fields{
		"camera":     camera,
		"process_id": rec.ProcessID,
	})

	var person string
	if p.faces != nil && p.policy.UsesFaceRecognition(camera) {
		rec.FaceResolution.Used = true

		resp, err := p.faces.Recognize(ctx, camera)
		if err != nil {
			logger.Warnf("face recognition failed: %v", err)
			resp = nil
		} else {
			rec.FaceResolution.Raw = resp.Raw
		}

		res := facematch.Resolve(resp, p.allow, p.policy.ProcessAllResults())
		if !res.Proceed {
			logger.Debug("no eligible face, skipping gesture detection")
			return finish(rec)
		}
		person = res.Person
		logger = logger.WithField("person", person)
	}

	frame, err := p.frames.Latest(ctx, camera)
	if err != nil {
		logger.Warnf("failed to fetch frame: %v", err)
		return finish(rec)
	}
	defer frame.Close()

	cls, err := p.classifier.Classify(frame)
	if err != nil {
		logger.Warnf("gesture classification failed: %v", err)
		return finish(rec)
	}

	if cls.Found() {
		logger.WithField("gesture", cls.Gesture).Debug("gesture recognized")
		p.archive(*frame, camera, cls, rec.ProcessID)
	}

	rec.Person = person
	rec.Gesture = cls.Gesture
	rec.HandRegion = cls.Hand
	return finish(rec)
}

// archive hands a copy of the frame to the archiver without waiting. At most
// one write per camera is in flight; frames arriving meanwhile are dropped.
func (p *Pipeline) archive(frame gocv.Mat, camera string, cls detector.Classification, processID string) {
	if p.archiver == nil || !p.archiver.Enabled() {
		return
	}

	p.mu.Lock()
	if p.pending[camera] {
		p.mu.Unlock()
		log.WithFields(log.Fields{
			"camera":     camera,
			"process_id": processID,
		}).Debug("archive busy, dropping snapshot")
		return
	}
	p.pending[camera] = true
	p.mu.Unlock()

	clone := frame.Clone()
	p.archiving.Add(1)
	go func() {
		defer p.archiving.Done()
		defer func() {
			p.mu.Lock()
			delete(p.pending, camera)
			p.mu.Unlock()
		}()
		defer clone.Close()
		p.archiver.Archive(clone, camera, cls.Gesture, *cls.Hand, processID)
	}()
}

// Wait blocks until pending archival work has finished.
func (p *Pipeline) Wait() {
	p.archiving.Wait()
}

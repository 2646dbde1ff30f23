// Package publisher sends camera status records to the broker, suppressing
// records that do not change what subscribers already see.
package publisher

import (
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/mqtt"
	"github.com/ayusman/mudra/internal/state"
	"github.com/ayusman/mudra/internal/types"
)

// Availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// History records published status records.
type History interface {
	Append(rec types.StatusRecord) error
	Trim(camera string, keep int) (int64, error)
}

// Publisher publishes retained status records under a root topic.
type Publisher struct {
	root      string
	transport mqtt.Transport
	history   History
	keep      int
}

// New creates a publisher for topics under root.
func New(root string, transport mqtt.Transport) *Publisher {
	return &Publisher{
		root:      strings.TrimRight(root, "/"),
		transport: transport,
	}
}

// WithHistory makes the publisher record every issued publish, keeping at
// most keep records per camera (0 keeps everything).
func (p *Publisher) WithHistory(h History, keep int) *Publisher {
	p.history = h
	p.keep = keep
	return p
}

// Topic returns the status topic of a camera.
func (p *Publisher) Topic(camera string) string {
	return p.root + "/" + camera
}

// AvailabilityTopic returns the service availability topic.
func (p *Publisher) AvailabilityTopic() string {
	return p.root + "/availability"
}

// Announce marks the service online.
func (p *Publisher) Announce() error {
	if err := p.transport.Publish(p.AvailabilityTopic(), true, []byte(Online)); err != nil {
		return fmt.Errorf("announce availability: %w", err)
	}
	return nil
}

// Publish sends rec unless it describes the same state as the camera's last
// published record. It reports whether a message was sent.
func (p *Publisher) Publish(cam *state.Camera, rec types.StatusRecord) (bool, error) {
	if last, ok := cam.LastPublished(); ok && last.SameState(rec) {
		log.WithFields(log.Fields{
			"camera":     rec.Camera,
			"process_id": rec.ProcessID,
		}).Trace("state unchanged, not publishing")
		return false, nil
	}

	if err := p.send(cam, rec); err != nil {
		return false, err
	}
	return true, nil
}

// Reset publishes the empty record for a camera regardless of what was
// published before.
func (p *Publisher) Reset(cam *state.Camera) error {
	return p.send(cam, types.Empty(cam.Name()))
}

func (p *Publisher) send(cam *state.Camera, rec types.StatusRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	if err := p.transport.Publish(p.Topic(rec.Camera), true, payload); err != nil {
		return fmt.Errorf("publish status for %s: %w", rec.Camera, err)
	}
	cam.SetLastPublished(rec)

	log.WithFields(log.Fields{
		"camera":     rec.Camera,
		"process_id": rec.ProcessID,
		"person":     rec.Person,
		"gesture":    rec.Gesture,
	}).Info("status published")

	p.record(rec)
	return nil
}

func (p *Publisher) record(rec types.StatusRecord) {
	if p.history == nil {
		return
	}

	if err := p.history.Append(rec); err != nil {
		log.WithField("camera", rec.Camera).Warnf("failed to record status history: %v", err)
		return
	}
	if p.keep > 0 {
		if _, err := p.history.Trim(rec.Camera, p.keep); err != nil {
			log.WithField("camera", rec.Camera).Warnf("failed to trim status history: %v", err)
		}
	}
}

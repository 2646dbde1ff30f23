// Package occupancy feeds Frigate's per-camera person counts into the camera
// state.
package occupancy

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/mqtt"
	"github.com/ayusman/mudra/internal/state"
)

// Feed subscribes to <prefix>/<camera>/person for every registered camera.
type Feed struct {
	prefix   string
	registry *state.Registry
}

// NewFeed creates a feed for the cameras in registry.
func NewFeed(prefix string, registry *state.Registry) *Feed {
	return &Feed{
		prefix:   strings.TrimRight(prefix, "/"),
		registry: registry,
	}
}

// Topic returns the person-count topic of a camera.
func (f *Feed) Topic(camera string) string {
	return fmt.Sprintf("%s/%s/person", f.prefix, camera)
}

// Start subscribes to every camera's person topic.
func (f *Feed) Start(transport mqtt.Transport) error {
	for _, name := range f.registry.Names() {
		if err := transport.Subscribe(f.Topic(name), f.handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
	}
	return nil
}

func (f *Feed) handle(topic string, payload []byte) {
	camera, ok := f.cameraFromTopic(topic)
	if !ok {
		return
	}

	cam, err := f.registry.Get(camera)
	if err != nil {
		return
	}

	n, err := ParseCount(payload)
	if err != nil {
		log.WithFields(log.Fields{
			"camera":  camera,
			"payload": string(payload),
		}).Warnf("ignoring person count: %v", err)
		return
	}

	if prev := cam.PersonCount(); prev != n {
		log.WithFields(log.Fields{
			"camera": camera,
			"from":   prev,
			"to":     n,
		}).Debug("person count changed")
	}
	cam.SetPersonCount(n)
}

func (f *Feed) cameraFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, f.prefix+"/")
	if !ok {
		return "", false
	}
	camera, ok := strings.CutSuffix(rest, "/person")
	if !ok || camera == "" || strings.Contains(camera, "/") {
		return "", false
	}
	return camera, true
}

// ParseCount parses a person-count payload: a non-negative decimal integer,
// surrounding whitespace allowed.
func ParseCount(payload []byte) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return 0, fmt.Errorf("invalid count: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

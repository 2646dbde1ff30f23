// Package state keeps the per-camera runtime state: the occupancy count fed
// by Frigate and the last status record published for the camera.
package state

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ayusman/mudra/internal/types"
)

// ErrUnknownCamera is returned when a camera name is not registered.
var ErrUnknownCamera = errors.New("unknown camera")

// Camera is the mutable state of one configured camera.
//
// The person count is written by the occupancy feed and read by the
// scheduler. The last published record is written only by the publisher;
// the lock exists so the status API can take consistent snapshots.
type Camera struct {
	name        string
	personCount atomic.Int64

	mu            sync.RWMutex
	lastPublished *types.StatusRecord
}

// NewCamera creates the state for a camera with zero occupancy and nothing
// published yet.
func NewCamera(name string) *Camera {
	return &Camera{name: name}
}

// Name returns the camera name.
func (c *Camera) Name() string {
	return c.name
}

// PersonCount returns the last known number of people in view.
func (c *Camera) PersonCount() int {
	return int(c.personCount.Load())
}

// SetPersonCount records a new occupancy value. Negative values are clamped
// to zero.
func (c *Camera) SetPersonCount(n int) {
	if n < 0 {
		n = 0
	}
	c.personCount.Store(int64(n))
}

// LastPublished returns a copy of the last record sent for this camera.
// The boolean is false until the first publish.
func (c *Camera) LastPublished() (types.StatusRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastPublished == nil {
		return types.StatusRecord{}, false
	}
	return *c.lastPublished, true
}

// SetLastPublished records the record that was just sent.
func (c *Camera) SetLastPublished(rec types.StatusRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastPublished = &rec
}

// Snapshot is a read-only view of a camera for reporting.
type Snapshot struct {
	Name          string              `json:"name"`
	PersonCount   int                 `json:"person_count"`
	LastPublished *types.StatusRecord `json:"last_published"`
}

// Snapshot returns the current state of the camera.
func (c *Camera) Snapshot() Snapshot {
	s := Snapshot{
		Name:        c.name,
		PersonCount: c.PersonCount(),
	}
	if rec, ok := c.LastPublished(); ok {
		s.LastPublished = &rec
	}
	return s
}

// Registry holds the state of every configured camera. The set of cameras
// is fixed at construction.
type Registry struct {
	cameras map[string]*Camera
	order   []string
}

// NewRegistry creates state for the given camera names. Duplicate names are
// collapsed; the first occurrence fixes the ordering.
func NewRegistry(names []string) *Registry {
	r := &Registry{
		cameras: make(map[string]*Camera, len(names)),
		order:   make([]string, 0, len(names)),
	}
	for _, name := range names {
		if _, ok := r.cameras[name]; ok {
			continue
		}
		r.cameras[name] = NewCamera(name)
		r.order = append(r.order, name)
	}
	return r
}

// Get returns the camera with the given name.
func (r *Registry) Get(name string) (*Camera, error) {
	c, ok := r.cameras[name]
	if !ok {
		return nil, ErrUnknownCamera
	}
	return c, nil
}

// Cameras returns all cameras in configuration order.
func (r *Registry) Cameras() []*Camera {
	out := make([]*Camera, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.cameras[name])
	}
	return out
}

// Names returns the camera names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Len returns the number of registered cameras.
func (r *Registry) Len() int {
	return len(r.order)
}

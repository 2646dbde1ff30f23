// Package archive stores annotated frames of recognized gestures and keeps
// the archive within its configured retention limits.
package archive

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/types"
)

var (
	boxColor   = color.RGBA{0, 255, 0, 255}
	labelColor = color.RGBA{0, 255, 0, 255}
)

// Index records archived files. store.SnapshotRepository implements it.
type Index interface {
	Create(snap *store.Snapshot) error
	DeleteByPath(path string) error
}

// Manager writes annotated snapshots and enforces retention.
type Manager struct {
	cfg   config.ArchiveConfig
	index Index
	now   func() time.Time

	// serializes writes and cleanup across camera loops
	mu sync.Mutex
}

// New creates a Manager. index may be nil.
func New(cfg config.ArchiveConfig, index Index) *Manager {
	return &Manager{
		cfg:   cfg,
		index: index,
		now:   time.Now,
	}
}

// Enabled reports whether archiving is switched on.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// Archive draws the hand region and gesture label on a copy of frame, writes
// it to the archive directory and applies retention. Failures are logged and
// never returned.
func (m *Manager) Archive(frame gocv.Mat, camera, gesture string, hand types.Box, processID string) {
	if !m.cfg.Enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	logger := log.WithFields(log.Fields{
		"camera":     camera,
		"process_id": processID,
	})

	if frame.Empty() {
		logger.Warn("not archiving empty frame")
		return
	}

	annotated := frame.Clone()
	defer annotated.Close()
	Annotate(&annotated, gesture, hand)

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		logger.Errorf("failed to create archive directory: %v", err)
		return
	}

	created := m.now()
	path := filepath.Join(m.cfg.Dir, FileName(camera, created, processID))
	if !gocv.IMWrite(path, annotated) {
		logger.WithField("path", path).Error("failed to write snapshot")
		return
	}
	logger.WithField("path", path).Debug("snapshot archived")

	if m.index != nil {
		snap := &store.Snapshot{
			Path:      path,
			Camera:    camera,
			Gesture:   gesture,
			ProcessID: processID,
			CreatedAt: created,
		}
		if err := m.index.Create(snap); err != nil {
			logger.Warnf("failed to index snapshot: %v", err)
		}
	}

	m.cleanup(camera, path)
}

// Annotate draws the hand box and the gesture label onto frame.
func Annotate(frame *gocv.Mat, gesture string, hand types.Box) {
	rect := image.Rect(hand.X, hand.Y, hand.X+hand.Width, hand.Y+hand.Height)
	gocv.Rectangle(frame, rect, boxColor, 2)

	labelY := hand.Y - 8
	if labelY < 16 {
		labelY = hand.Y + hand.Height + 20
	}
	gocv.PutText(frame, gesture, image.Pt(hand.X, labelY), gocv.FontHersheySimplex, 0.6, labelColor, 2)
}

// FileName returns the archive file name of a snapshot.
func FileName(camera string, at time.Time, processID string) string {
	return fmt.Sprintf("%s_%d_%s.jpg", camera, at.Unix(), processID)
}

// entry is an archived file parsed from its name.
type entry struct {
	path      string
	camera    string
	timestamp int64
	modTime   time.Time
}

// parseFileName splits <camera>_<unix>_<processId>.jpg. Camera names may
// contain underscores, process IDs do not.
func parseFileName(name string) (entry, bool) {
	base, ok := strings.CutSuffix(name, ".jpg")
	if !ok {
		return entry{}, false
	}

	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return entry{}, false
	}
	rest := base[:i]

	j := strings.LastIndex(rest, "_")
	if j <= 0 {
		return entry{}, false
	}

	ts, err := strconv.ParseInt(rest[j+1:], 10, 64)
	if err != nil {
		return entry{}, false
	}
	return entry{camera: rest[:j], timestamp: ts}, true
}

// Cleanup applies retention for camera, or for the whole archive when the
// scope is global.
func (m *Manager) Cleanup(camera string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanup(camera, "")
}

// cleanup deletes files beyond the retention limits. latest, when set, is
// the file just written and always counts as the newest.
func (m *Manager) cleanup(camera, latest string) {
	if m.cfg.MaxFiles <= 0 && m.cfg.MaxAge <= 0 {
		return
	}

	entries, err := m.list(camera)
	if err != nil {
		log.WithField("camera", camera).Errorf("failed to list archive: %v", err)
		return
	}

	// newest first; names only carry seconds, so ties fall back to write order
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.timestamp != b.timestamp {
			return a.timestamp > b.timestamp
		}
		if (a.path == latest) != (b.path == latest) {
			return a.path == latest
		}
		if !a.modTime.Equal(b.modTime) {
			return a.modTime.After(b.modTime)
		}
		return a.path > b.path
	})

	var cutoff int64
	if m.cfg.MaxAge > 0 {
		cutoff = m.now().Add(-m.cfg.MaxAge).Unix()
	}
	for i, e := range entries {
		expired := m.cfg.MaxAge > 0 && e.timestamp < cutoff
		overflow := m.cfg.MaxFiles > 0 && i >= m.cfg.MaxFiles
		if expired || overflow {
			m.remove(e.path)
		}
	}
}

func (m *Manager) list(camera string) ([]entry, error) {
	dirEntries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var entries []entry
	for _, d := range dirEntries {
		if d.IsDir() {
			continue
		}
		e, ok := parseFileName(d.Name())
		if !ok {
			continue
		}
		if m.cfg.Scope != config.ScopeGlobal && e.camera != camera {
			continue
		}
		if info, err := d.Info(); err == nil {
			e.modTime = info.ModTime()
		}
		e.path = filepath.Join(m.cfg.Dir, d.Name())
		entries = append(entries, e)
	}
	return entries, nil
}

func (m *Manager) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithField("path", path).Warnf("failed to delete snapshot: %v", err)
		return
	}
	log.WithField("path", path).Debug("snapshot removed by retention")

	if m.index != nil {
		if err := m.index.DeleteByPath(path); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.WithField("path", path).Warnf("failed to unindex snapshot: %v", err)
		}
	}
}

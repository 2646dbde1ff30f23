package api

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/store"
)

// SnapshotLister lists archived snapshots. store.SnapshotRepository
// implements it.
type SnapshotLister interface {
	List(camera string, limit int) ([]*store.Snapshot, error)
}

// SnapshotHandler serves the archived snapshot index.
type SnapshotHandler struct {
	snapshots SnapshotLister
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(snapshots SnapshotLister) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// List handles GET /api/snapshots?camera=&limit=.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	snaps, err := h.snapshots.List(r.URL.Query().Get("camera"), limit)
	if err != nil {
		log.Errorf("failed to list snapshots: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	if snaps == nil {
		snaps = []*store.Snapshot{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
	})
}

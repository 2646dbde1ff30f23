package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/state"
	"github.com/ayusman/mudra/internal/types"
)

// History lists a camera's published records, newest first.
// store.EventRepository implements it.
type History interface {
	Recent(camera string, limit int) ([]types.StatusRecord, error)
}

// CameraHandler serves the live camera state.
type CameraHandler struct {
	registry *state.Registry
	history  History
}

// NewCameraHandler creates a CameraHandler. history may be nil.
func NewCameraHandler(registry *state.Registry, history History) *CameraHandler {
	return &CameraHandler{registry: registry, history: history}
}

// List handles GET /api/cameras.
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	cameras := h.registry.Cameras()

	snapshots := make([]state.Snapshot, 0, len(cameras))
	for _, cam := range cameras {
		snapshots = append(snapshots, cam.Snapshot())
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"cameras": snapshots,
	})
}

// Get handles GET /api/cameras/{name}.
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	cam, ok := h.camera(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, cam.Snapshot())
}

// History handles GET /api/cameras/{name}/history.
func (h *CameraHandler) History(w http.ResponseWriter, r *http.Request) {
	cam, ok := h.camera(w, r)
	if !ok {
		return
	}

	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "status history is disabled")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	records, err := h.history.Recent(cam.Name(), limit)
	if err != nil {
		log.WithField("camera", cam.Name()).Errorf("failed to read status history: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"camera":  cam.Name(),
		"records": records,
	})
}

func (h *CameraHandler) camera(w http.ResponseWriter, r *http.Request) (*state.Camera, bool) {
	cam, err := h.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, http.StatusNotFound, "camera not found")
		return nil, false
	}
	return cam, true
}

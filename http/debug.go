package http

import (
	"net/http"

	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

type boundsResponse struct {
	Bounds []models.Box `json:"bounds"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Debug serves the internal state of the scene indexes. It is meant to be
// exposed on the admin server only.
type Debug struct {
	Scenes *models.SceneStore
}

func (d *Debug) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/scenes/{scene}/bounds", d.handleBounds)
	mux.HandleFunc("GET /debug/scenes/{scene}/tree", d.handleTree)
	mux.HandleFunc("GET /debug/scenes/{scene}/info", d.handleInfo)
	mux.HandleFunc("GET /debug/scenes/{scene}/validate", d.handleValidate)
}

func (d *Debug) handleBounds(w http.ResponseWriter, r *http.Request) {
	scene, err := sceneFromStore(d.Scenes, r)
	if err != nil {
		writeError(w, err)
		return
	}

	bounds := scene.Bounds()
	boxes := make([]models.Box, len(bounds))
	for i, b := range bounds {
		boxes[i] = models.NewBox(b)
	}
	writeJSON(w, http.StatusOK, boundsResponse{Bounds: boxes})
}

func (d *Debug) handleTree(w http.ResponseWriter, r *http.Request) {
	scene, err := sceneFromStore(d.Scenes, r)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := scene.Dump(w); err != nil {
		logs.Warn(err)
	}
}

func (d *Debug) handleInfo(w http.ResponseWriter, r *http.Request) {
	scene, err := sceneFromStore(d.Scenes, r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scene.DebugInfo())
}

func (d *Debug) handleValidate(w http.ResponseWriter, r *http.Request) {
	scene, err := sceneFromStore(d.Scenes, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := scene.Validate(); err != nil {
		logs.Warn(err)
		writeJSON(w, http.StatusInternalServerError, validateResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true})
}

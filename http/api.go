package http

import (
	"net/http"

	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest = "bad_request"

	maxRequestBodySize = 1 << 20
)

type addObjectRequest struct {
	Kind string            `json:"kind"`
	Box  models.Box        `json:"box"`
	Tags map[string]string `json:"tags"`
}

type moveObjectRequest struct {
	Box models.Box `json:"box"`
}

type queryRequest struct {
	Box models.Box `json:"box"`
}

type objectResponse struct {
	Object models.ObjectMessage `json:"object"`
}

type queryResponse struct {
	Objects []models.ObjectMessage `json:"objects"`
}

type scenesResponse struct {
	Scenes []string `json:"scenes"`
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// API serves the objects of the scenes over HTTP.
type API struct {
	Scenes *models.SceneStore
}

// Handler returns the handler that routes the API requests.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /scenes", a.handleListScenes)
	mux.HandleFunc("DELETE /scenes/{scene}", a.handleRemoveScene)
	mux.HandleFunc("POST /scenes/{scene}/objects", a.handleAddObject)
	mux.HandleFunc("GET /scenes/{scene}/objects/{id}", a.handleGetObject)
	mux.HandleFunc("PUT /scenes/{scene}/objects/{id}/bounds", a.handleMoveObject)
	mux.HandleFunc("DELETE /scenes/{scene}/objects/{id}", a.handleRemoveObject)
	mux.HandleFunc("POST /scenes/{scene}/query", a.handleQuery)
	return mux
}

func (a *API) handleListScenes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenesResponse{Scenes: a.Scenes.Names()})
}

func (a *API) handleRemoveScene(w http.ResponseWriter, r *http.Request) {
	if err := a.Scenes.Remove(r.PathValue("scene")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddObject(w http.ResponseWriter, r *http.Request) {
	var req addObjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.Kind == "" {
		writeError(w, errors.New("object kind is empty").WithType(ErrTypeBadRequest))
		return
	}

	bounds, err := req.Box.ObjectBoundingBox()
	if err != nil {
		writeError(w, err)
		return
	}

	scene, err := a.Scenes.GetOrCreate(r.PathValue("scene"))
	if err != nil {
		writeError(w, err)
		return
	}

	o, err := scene.Add(req.Kind, bounds, req.Tags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, objectResponse{Object: models.NewObjectMessage(o)})
}

func (a *API) handleGetObject(w http.ResponseWriter, r *http.Request) {
	scene, id, err := a.sceneAndObjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	o, ok := scene.Get(id)
	if !ok {
		writeError(w, errors.New("object not found").
			WithType(models.ErrTypeObjectNotFound).
			WithTag("object_id", id))
		return
	}
	writeJSON(w, http.StatusOK, objectResponse{Object: models.NewObjectMessage(o)})
}

func (a *API) handleMoveObject(w http.ResponseWriter, r *http.Request) {
	scene, id, err := a.sceneAndObjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req moveObjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	bounds, err := req.Box.ObjectBoundingBox()
	if err != nil {
		writeError(w, err)
		return
	}

	o, err := scene.Move(id, bounds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, objectResponse{Object: models.NewObjectMessage(o)})
}

func (a *API) handleRemoveObject(w http.ResponseWriter, r *http.Request) {
	scene, id, err := a.sceneAndObjectID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := scene.Remove(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	scene, err := a.scene(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	bounds, err := req.Box.BoundingBox()
	if err != nil {
		writeError(w, err)
		return
	}

	objects := scene.Query(bounds)
	writeJSON(w, http.StatusOK, queryResponse{Objects: models.NewObjectMessages(objects)})
}

func (a *API) scene(r *http.Request) (*models.Scene, error) {
	return sceneFromStore(a.Scenes, r)
}

func (a *API) sceneAndObjectID(r *http.Request) (*models.Scene, uuid.UUID, error) {
	scene, err := a.scene(r)
	if err != nil {
		return nil, uuid.Nil, err
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, uuid.Nil, errors.New("invalid object id").
			WithType(ErrTypeBadRequest).
			WithTag("object_id", r.PathValue("id")).
			Wrap(err)
	}
	return scene, id, nil
}

func sceneFromStore(scenes *models.SceneStore, r *http.Request) (*models.Scene, error) {
	name := r.PathValue("scene")

	scene, ok := scenes.Get(name)
	if !ok {
		return nil, errors.New("scene not found").
			WithType(models.ErrTypeSceneNotFound).
			WithTag("scene", name)
	}
	return scene, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.New("decoding request body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(b)
}

func writeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError

	switch errors.Type(err) {
	case models.ErrTypeObjectNotFound, models.ErrTypeSceneNotFound:
		statusCode = http.StatusNotFound

	case ErrTypeBadRequest, models.ErrTypeInvalidBox, models.ErrTypeInvalidScene:
		statusCode = http.StatusBadRequest

	default:
		logs.Warn(err)
	}

	writeJSON(w, statusCode, errorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}

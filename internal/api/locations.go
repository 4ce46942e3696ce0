package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

// LocationsHandler handles location and tag endpoints.
type LocationsHandler struct {
	DB *sql.DB
}

type nameRequest struct {
	Name string `json:"name"`
}

// ListLocations handles GET /api/locations.
func (h *LocationsHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := store.ListLocations(r.Context(), h.DB, userID(r))
	if err != nil {
		storeError(w, err, "list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locations)
}

// CreateLocation handles POST /api/locations.
func (h *LocationsHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	location, err := store.CreateLocation(r.Context(), h.DB, userID(r), req.Name)
	if err != nil {
		storeError(w, err, "create location")
		return
	}
	jsonResponse(w, http.StatusCreated, location)
}

// RenameLocation handles PUT /api/locations/{id}.
func (h *LocationsHandler) RenameLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.RenameLocation(r.Context(), h.DB, userID(r), id, req.Name); err != nil {
		storeError(w, err, "rename location")
		return
	}

	location, err := store.GetLocation(r.Context(), h.DB, userID(r), id)
	if err != nil {
		storeError(w, err, "get location")
		return
	}
	jsonResponse(w, http.StatusOK, location)
}

// DeleteLocation handles DELETE /api/locations/{id}. Locations still
// referenced by items cannot be deleted.
func (h *LocationsHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	if err := store.DeleteLocation(r.Context(), h.DB, userID(r), id); err != nil {
		storeError(w, err, "delete location")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTags handles GET /api/tags.
func (h *LocationsHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := store.ListTags(r.Context(), h.DB, userID(r))
	if err != nil {
		storeError(w, err, "list tags")
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	jsonResponse(w, http.StatusOK, tags)
}

// CreateTag handles POST /api/tags.
func (h *LocationsHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tag, err := store.CreateTag(r.Context(), h.DB, userID(r), req.Name)
	if err != nil {
		storeError(w, err, "create tag")
		return
	}
	jsonResponse(w, http.StatusCreated, tag)
}

// RenameTag handles PUT /api/tags/{id}.
func (h *LocationsHandler) RenameTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	var req nameRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.RenameTag(r.Context(), h.DB, userID(r), id, req.Name); err != nil {
		storeError(w, err, "rename tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTag handles DELETE /api/tags/{id}.
func (h *LocationsHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	if err := store.DeleteTag(r.Context(), h.DB, userID(r), id); err != nil {
		storeError(w, err, "delete tag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB *sql.DB
}

type itemRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	IconType    string     `json:"icon_type"`
	Quantity    *int       `json:"quantity"`
	Price       *float64   `json:"price"`
	Priceless   bool       `json:"priceless"`
	LocationID  *int64     `json:"location_id"`
	AcquiredAt  *time.Time `json:"acquired_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	TagIDs      []int64    `json:"tag_ids"`
}

func (req *itemRequest) input() store.ItemInput {
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	return store.ItemInput{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		IconType:    req.IconType,
		Quantity:    quantity,
		Price:       req.Price,
		Priceless:   req.Priceless,
		LocationID:  req.LocationID,
		AcquiredAt:  req.AcquiredAt,
		ExpiresAt:   req.ExpiresAt,
		TagIDs:      req.TagIDs,
	}
}

type noteRequest struct {
	Note string `json:"note"`
}

type consumeRequest struct {
	Amount int `json:"amount"`
}

type tagsRequest struct {
	TagIDs []int64 `json:"tag_ids"`
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, target any) error {
	if err := decodeJSON(r, target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// List handles GET /api/items. The archived query parameter selects active
// items (default), archived items ("true") or both ("all").
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	var archived *bool
	switch r.URL.Query().Get("archived") {
	case "", "false":
		f := false
		archived = &f
	case "true":
		t := true
		archived = &t
	case "all":
	default:
		jsonError(w, http.StatusBadRequest, "archived must be true, false or all")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, userID(r), archived)
	if err != nil {
		storeError(w, err, "list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, userID(r), req.input())
	if err != nil {
		storeError(w, err, "create item")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	h.respondItem(w, r, id)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.UpdateItem(r.Context(), h.DB, userID(r), id, req.input()); err != nil {
		storeError(w, err, "update item")
		return
	}
	h.respondItem(w, r, id)
}

// SetTags handles PUT /api/items/{id}/tags, replacing the item's tags.
func (h *ItemsHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req tagsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, userID(r), id)
	if err != nil {
		storeError(w, err, "get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}

	in := store.ItemInput{
		Name:        item.Name,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		IconType:    item.IconType,
		Quantity:    max(item.Quantity, 1), // ignored for archived items
		Price:       item.Price,
		Priceless:   item.Priceless,
		LocationID:  item.LocationID,
		AcquiredAt:  item.AcquiredAt,
		ExpiresAt:   item.ExpiresAt,
		TagIDs:      req.TagIDs,
	}
	if err := store.UpdateItem(r.Context(), h.DB, userID(r), id, in); err != nil {
		storeError(w, err, "update item tags")
		return
	}
	h.respondItem(w, r, id)
}

// Archive handles POST /api/items/{id}/archive.
func (h *ItemsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req noteRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.ArchiveItem(r.Context(), h.DB, userID(r), id, req.Note); err != nil {
		storeError(w, err, "archive item")
		return
	}
	h.respondItem(w, r, id)
}

// Restore handles POST /api/items/{id}/restore.
func (h *ItemsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := store.RestoreItem(r.Context(), h.DB, userID(r), id); err != nil {
		storeError(w, err, "restore item")
		return
	}
	h.respondItem(w, r, id)
}

// Consume handles POST /api/items/{id}/consume. Amount defaults to 1.
func (h *ItemsHandler) Consume(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	req := consumeRequest{Amount: 1}
	if err := decodeOptionalJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.ConsumeItem(r.Context(), h.DB, userID(r), id, req.Amount); err != nil {
		storeError(w, err, "consume item")
		return
	}
	h.respondItem(w, r, id)
}

// Gift handles POST /api/items/{id}/gift.
func (h *ItemsHandler) Gift(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req noteRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.GiftItem(r.Context(), h.DB, userID(r), id, req.Note); err != nil {
		storeError(w, err, "gift item")
		return
	}
	h.respondItem(w, r, id)
}

// History handles GET /api/items/{id}/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	history, err := store.GetItemHistory(r.Context(), h.DB, userID(r), id)
	if err != nil {
		storeError(w, err, "get item history")
		return
	}
	if history == nil {
		history = []model.HistoryEntry{}
	}
	jsonResponse(w, http.StatusOK, history)
}

func (h *ItemsHandler) respondItem(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := store.GetItem(r.Context(), h.DB, userID(r), id)
	if err != nil {
		storeError(w, err, "get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

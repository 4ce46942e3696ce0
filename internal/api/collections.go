package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

// CollectionsHandler handles collection and share endpoints.
type CollectionsHandler struct {
	DB *sql.DB
}

type collectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type addItemRequest struct {
	ItemID int64  `json:"item_id"`
	Note   string `json:"note"`
}

type reorderRequest struct {
	ItemIDs []int64 `json:"item_ids"`
}

type shareRequest struct {
	IsEnabled bool                  `json:"is_enabled"`
	Display   model.DisplaySettings `json:"display"`
}

// List handles GET /api/collections.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	collections, err := store.ListCollections(r.Context(), h.DB, userID(r))
	if err != nil {
		storeError(w, err, "list collections")
		return
	}
	if collections == nil {
		collections = []model.Collection{}
	}
	jsonResponse(w, http.StatusOK, collections)
}

// Create handles POST /api/collections.
func (h *CollectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	collection, err := store.CreateCollection(r.Context(), h.DB, userID(r), req.Name, req.Description)
	if err != nil {
		storeError(w, err, "create collection")
		return
	}
	jsonResponse(w, http.StatusCreated, collection)
}

// Get handles GET /api/collections/{id}.
func (h *CollectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}
	h.respondCollection(w, r, id)
}

// Update handles PUT /api/collections/{id}.
func (h *CollectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	var req collectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.UpdateCollection(r.Context(), h.DB, userID(r), id, req.Name, req.Description); err != nil {
		storeError(w, err, "update collection")
		return
	}
	h.respondCollection(w, r, id)
}

// Delete handles DELETE /api/collections/{id}.
func (h *CollectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	if err := store.DeleteCollection(r.Context(), h.DB, userID(r), id); err != nil {
		storeError(w, err, "delete collection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /api/collections/{id}/items.
func (h *CollectionsHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}

	if err := store.AddItemToCollection(r.Context(), h.DB, userID(r), id, req.ItemID, req.Note); err != nil {
		storeError(w, err, "add item to collection")
		return
	}
	h.respondCollection(w, r, id)
}

// RemoveItem handles DELETE /api/collections/{id}/items/{itemID}.
func (h *CollectionsHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}
	itemID, ok := pathID(r, "itemID")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := store.RemoveItemFromCollection(r.Context(), h.DB, userID(r), id, itemID); err != nil {
		storeError(w, err, "remove item from collection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles PUT /api/collections/{id}/order.
func (h *CollectionsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.ReorderCollection(r.Context(), h.DB, userID(r), id, req.ItemIDs); err != nil {
		storeError(w, err, "reorder collection")
		return
	}
	h.respondCollection(w, r, id)
}

// GetShare handles GET /api/collections/{id}/share.
func (h *CollectionsHandler) GetShare(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	share, err := store.GetShareSettings(r.Context(), h.DB, userID(r), id)
	if err != nil {
		storeError(w, err, "get share settings")
		return
	}
	jsonResponse(w, http.StatusOK, share)
}

// UpdateShare handles PUT /api/collections/{id}/share.
func (h *CollectionsHandler) UpdateShare(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	var req shareRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.UpdateShareSettings(r.Context(), h.DB, userID(r), id, req.IsEnabled, req.Display); err != nil {
		storeError(w, err, "update share settings")
		return
	}
	h.GetShare(w, r)
}

// RotateShare handles POST /api/collections/{id}/share/rotate.
func (h *CollectionsHandler) RotateShare(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	if _, err := store.RotateShareID(r.Context(), h.DB, userID(r), id); err != nil {
		storeError(w, err, "rotate share id")
		return
	}
	h.GetShare(w, r)
}

func (h *CollectionsHandler) respondCollection(w http.ResponseWriter, r *http.Request, id int64) {
	collection, err := store.GetCollection(r.Context(), h.DB, userID(r), id)
	if err != nil {
		storeError(w, err, "get collection")
		return
	}
	if collection == nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}
	jsonResponse(w, http.StatusOK, collection)
}

// sharedCollection is the anonymous view of a shared collection.
type sharedCollection struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Items       []sharedItem `json:"items"`
}

// sharedItem carries only the fields the owner chose to publish.
type sharedItem struct {
	Name        string     `json:"name"`
	ImageURL    string     `json:"image_url,omitempty"`
	IconType    string     `json:"icon_type,omitempty"`
	Note        string     `json:"note,omitempty"`
	Description string     `json:"description,omitempty"`
	Quantity    *int       `json:"quantity,omitempty"`
	Location    string     `json:"location,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Price       *float64   `json:"price,omitempty"`
	Priceless   bool       `json:"priceless,omitempty"`
	AcquiredAt  *time.Time `json:"acquired_at,omitempty"`
}

// Shared handles GET /api/shared/{shareID}. It needs no authentication;
// unknown and disabled shares are indistinguishable.
func (h *CollectionsHandler) Shared(w http.ResponseWriter, r *http.Request) {
	collection, err := store.GetSharedCollection(r.Context(), h.DB, r.PathValue("shareID"))
	if err != nil {
		storeError(w, err, "get shared collection")
		return
	}
	if collection == nil || collection.Share == nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}

	jsonResponse(w, http.StatusOK, publicView(collection))
}

// publicView applies the collection's display settings. Archived members
// are not published.
func publicView(c *model.Collection) sharedCollection {
	d := c.Share.Display
	view := sharedCollection{
		Name:        c.Name,
		Description: c.Description,
		Items:       []sharedItem{},
	}
	for _, m := range c.Items {
		item := m.Item
		if item.Archived {
			continue
		}
		si := sharedItem{
			Name:     item.Name,
			ImageURL: item.ImageURL,
			IconType: item.IconType,
			Note:     m.Note,
		}
		if d.Description {
			si.Description = item.Description
		}
		if d.Quantity {
			si.Quantity = &item.Quantity
		}
		if d.Location {
			si.Location = item.LocationName
		}
		if d.Tags {
			for _, t := range item.Tags {
				si.Tags = append(si.Tags, t.Name)
			}
		}
		if d.Price {
			si.Price = item.Price
			si.Priceless = item.Priceless
		}
		if d.AcquiredAt {
			si.AcquiredAt = item.AcquiredAt
		}
		view.Items = append(view.Items, si)
	}
	return view
}

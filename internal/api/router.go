package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shramba/internal/assistant"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, svc *assistant.Service) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	accountHandler := &AccountHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	locationsHandler := &LocationsHandler{DB: db}
	collectionsHandler := &CollectionsHandler{DB: db}
	assistantHandler := &AssistantHandler{Service: svc}

	authMW := AuthMiddleware(jwtSecret, db)
	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMW(h))
	}

	// Public.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/shared/{shareID}", collectionsHandler.Shared)

	// Account.
	protect("POST /api/auth/logout", authHandler.Logout)
	protect("PUT /api/auth/password", authHandler.ChangePassword)
	protect("GET /api/me", accountHandler.Get)
	protect("DELETE /api/me", accountHandler.Delete)

	// Items.
	protect("GET /api/items", itemsHandler.List)
	protect("POST /api/items", itemsHandler.Create)
	protect("GET /api/items/{id}", itemsHandler.Get)
	protect("PUT /api/items/{id}", itemsHandler.Update)
	protect("PUT /api/items/{id}/tags", itemsHandler.SetTags)
	protect("POST /api/items/{id}/archive", itemsHandler.Archive)
	protect("POST /api/items/{id}/restore", itemsHandler.Restore)
	protect("POST /api/items/{id}/consume", itemsHandler.Consume)
	protect("POST /api/items/{id}/gift", itemsHandler.Gift)
	protect("GET /api/items/{id}/history", itemsHandler.History)

	// Locations and tags.
	protect("GET /api/locations", locationsHandler.ListLocations)
	protect("POST /api/locations", locationsHandler.CreateLocation)
	protect("PUT /api/locations/{id}", locationsHandler.RenameLocation)
	protect("DELETE /api/locations/{id}", locationsHandler.DeleteLocation)
	protect("GET /api/tags", locationsHandler.ListTags)
	protect("POST /api/tags", locationsHandler.CreateTag)
	protect("PUT /api/tags/{id}", locationsHandler.RenameTag)
	protect("DELETE /api/tags/{id}", locationsHandler.DeleteTag)

	// Collections.
	protect("GET /api/collections", collectionsHandler.List)
	protect("POST /api/collections", collectionsHandler.Create)
	protect("GET /api/collections/{id}", collectionsHandler.Get)
	protect("PUT /api/collections/{id}", collectionsHandler.Update)
	protect("DELETE /api/collections/{id}", collectionsHandler.Delete)
	protect("POST /api/collections/{id}/items", collectionsHandler.AddItem)
	protect("DELETE /api/collections/{id}/items/{itemID}", collectionsHandler.RemoveItem)
	protect("PUT /api/collections/{id}/order", collectionsHandler.Reorder)
	protect("GET /api/collections/{id}/share", collectionsHandler.GetShare)
	protect("PUT /api/collections/{id}/share", collectionsHandler.UpdateShare)
	protect("POST /api/collections/{id}/share/rotate", collectionsHandler.RotateShare)

	// Assistant.
	protect("POST /api/assistant/ask", assistantHandler.Ask)
	protect("GET /api/assistant/query-status", assistantHandler.QueryStatus)
	protect("GET /api/assistant/analysis-status", assistantHandler.AnalysisStatus)
	protect("POST /api/assistant/analyze-image", assistantHandler.AnalyzeImage)
	protect("GET /api/assistant/suggestions", assistantHandler.Suggestions)

	return mux
}

package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/shramba/internal/store"
)

// AccountHandler handles the authenticated user's own account.
type AccountHandler struct {
	DB *sql.DB
}

// Get handles GET /api/me.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := store.GetUser(r.Context(), h.DB, userID(r))
	if err != nil {
		storeError(w, err, "get user")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Delete handles DELETE /api/me. The account is soft-deleted and the
// presented token revoked.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := store.DeleteUser(r.Context(), h.DB, claims.UserID); err != nil {
		storeError(w, err, "delete user")
		return
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		slog.Warn("failed to revoke token of deleted user", "user", claims.Username, "error", err)
	}

	slog.Info("user deleted account", "user", claims.Username)
	w.WriteHeader(http.StatusNoContent)
}

package assistant

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/store"
)

// fakeModel records every request and answers with reply or err.
type fakeModel struct {
	mu    sync.Mutex
	calls []GenerateRequest
	reply string
	err   error
	// respond, when set, overrides reply and err.
	respond func(GenerateRequest) (string, error)
}

func (m *fakeModel) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	respond := m.respond
	m.mu.Unlock()

	if respond != nil {
		return respond(req)
	}
	return m.reply, m.err
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func newTestService(t *testing.T, m Model) (*Service, *sql.DB) {
	t.Helper()
	database := db.NewTestDB(t)
	cfg := DefaultConfig()
	cfg.SuggestionCacheTTL = 0
	return New(database, m, cfg), database
}

func createUser(t *testing.T, database *sql.DB, username string) int64 {
	t.Helper()
	user, err := store.CreateUser(context.Background(), database, username, "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user.ID
}

func createItem(t *testing.T, database *sql.DB, userID int64, in store.ItemInput) int64 {
	t.Helper()
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	item, err := store.CreateItem(context.Background(), database, userID, in)
	if err != nil {
		t.Fatalf("CreateItem %q: %v", in.Name, err)
	}
	return item.ID
}

func createLocation(t *testing.T, database *sql.DB, userID int64, name string) *int64 {
	t.Helper()
	loc, err := store.CreateLocation(context.Background(), database, userID, name)
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	return &loc.ID
}

func view(id int64, name string) ItemView {
	return ItemView{ID: id, Name: name, Quantity: 1}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/erazemk/shramba/internal/assistant"
	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/model"
)

const testJWTSecret = "test-secret"

// replyModel answers every request with a fixed reply.
type replyModel struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (m *replyModel) Generate(ctx context.Context, req assistant.GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.reply, nil
}

func (m *replyModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *replyModel) setReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
}

// setupTestServer starts a server with a registered user "alice" and returns
// it with alice's token. A nil model leaves the assistant unconfigured.
func setupTestServer(t *testing.T, m assistant.Model) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	cfg := assistant.DefaultConfig()
	cfg.QueryLimit = 2
	cfg.SuggestionCacheTTL = 0
	router := NewRouter(database, testJWTSecret, assistant.New(database, m, cfg))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, register(t, server, "alice", "password123")
}

func register(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}

	var reg loginResponse
	json.NewDecoder(resp.Body).Decode(&reg)
	if reg.Token == "" {
		t.Fatal("empty token from register")
	}
	return reg.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends an authenticated request, decodes the response into out when
// non-nil and returns the status code.
func do(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestRegisterLoginLogout(t *testing.T) {
	server, token := setupTestServer(t, nil)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "password123"})
	resp, _ := http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "bob", "password": "short"})
	resp, _ = http.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "alice", "password": "wrong-password"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{"username": "alice", "password": "password123"})
	resp, _ = http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for login, got %d", resp.StatusCode)
	}
	var login loginResponse
	json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if login.User == nil || login.User.Username != "alice" {
		t.Errorf("login user = %+v", login.User)
	}

	var me model.User
	if status := do(t, "GET", server.URL+"/api/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("expected 200 for /api/me, got %d", status)
	}
	if me.Username != "alice" {
		t.Errorf("me = %q, want alice", me.Username)
	}

	if status := do(t, "POST", server.URL+"/api/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 for logout, got %d", status)
	}
	if status := do(t, "GET", server.URL+"/api/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}

	// The second session is unaffected.
	if status := do(t, "GET", server.URL+"/api/me", login.Token, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 for other session, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	server, token := setupTestServer(t, nil)

	status := do(t, "PUT", server.URL+"/api/auth/password", token, map[string]string{
		"current_password": "wrong-password",
		"new_password":     "another-password",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", status)
	}

	status = do(t, "PUT", server.URL+"/api/auth/password", token, map[string]string{
		"current_password": "password123",
		"new_password":     "another-password",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "another-password"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected login with new password to succeed, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestItemsAPIFlow(t *testing.T) {
	server, token := setupTestServer(t, nil)

	var loc model.Location
	if status := do(t, "POST", server.URL+"/api/locations", token, map[string]string{"name": "Pantry"}, &loc); status != http.StatusCreated {
		t.Fatalf("expected 201 for location, got %d", status)
	}
	var tag model.Tag
	if status := do(t, "POST", server.URL+"/api/tags", token, map[string]string{"name": "Food"}, &tag); status != http.StatusCreated {
		t.Fatalf("expected 201 for tag, got %d", status)
	}

	var item model.Item
	status := do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"name":        "Rice",
		"description": "Basmati",
		"location_id": loc.ID,
		"tag_ids":     []int64{tag.ID},
	}, &item)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if item.Quantity != 1 || item.LocationName != "Pantry" || len(item.Tags) != 1 {
		t.Errorf("created item = %+v", item)
	}

	if status := do(t, "POST", server.URL+"/api/items", token, map[string]any{"name": "  "}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for blank name, got %d", status)
	}
	if status := do(t, "POST", server.URL+"/api/items", token, map[string]any{
		"name": "Gold", "price": 10, "priceless": true,
	}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for priced and priceless, got %d", status)
	}

	// Locations in use cannot be deleted.
	if status := do(t, "DELETE", fmt.Sprintf("%s/api/locations/%d", server.URL, loc.ID), token, nil, nil); status != http.StatusConflict {
		t.Errorf("expected 409 deleting used location, got %d", status)
	}

	itemURL := fmt.Sprintf("%s/api/items/%d", server.URL, item.ID)
	if status := do(t, "POST", itemURL+"/consume", token, map[string]int{"amount": 2}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 consuming more than held, got %d", status)
	}
	if status := do(t, "POST", itemURL+"/consume", token, nil, &item); status != http.StatusOK {
		t.Fatalf("expected 200 for consume, got %d", status)
	}
	if !item.Archived || item.Quantity != 0 {
		t.Errorf("after consuming last unit: archived=%v quantity=%d", item.Archived, item.Quantity)
	}

	var items []model.Item
	do(t, "GET", server.URL+"/api/items", token, nil, &items)
	if len(items) != 0 {
		t.Errorf("expected no active items, got %d", len(items))
	}
	do(t, "GET", server.URL+"/api/items?archived=all", token, nil, &items)
	if len(items) != 1 {
		t.Errorf("expected 1 item in all, got %d", len(items))
	}
	if status := do(t, "GET", server.URL+"/api/items?archived=maybe", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad archived filter, got %d", status)
	}

	if status := do(t, "POST", itemURL+"/restore", token, nil, &item); status != http.StatusOK {
		t.Fatalf("expected 200 for restore, got %d", status)
	}
	if item.Archived || item.Quantity != 1 {
		t.Errorf("after restore: archived=%v quantity=%d", item.Archived, item.Quantity)
	}

	var untagged model.Item
	if status := do(t, "PUT", itemURL+"/tags", token, map[string]any{"tag_ids": []int64{}}, &untagged); status != http.StatusOK {
		t.Fatalf("expected 200 for tags, got %d", status)
	}
	if untagged.ID != item.ID || len(untagged.Tags) != 0 || untagged.Description != "Basmati" {
		t.Errorf("after clearing tags: %+v", untagged)
	}

	if status := do(t, "POST", itemURL+"/gift", token, map[string]string{"note": "to Bob"}, &item); status != http.StatusOK {
		t.Fatalf("expected 200 for gift, got %d", status)
	}

	var history []model.HistoryEntry
	if status := do(t, "GET", itemURL+"/history", token, nil, &history); status != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", status)
	}
	if len(history) == 0 || history[0].Action != model.ActionGifted || history[0].Note != "to Bob" {
		t.Errorf("history = %+v", history)
	}

	// Another user sees nothing.
	other := register(t, server, "bob", "password123")
	if status := do(t, "GET", itemURL, other, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for foreign item, got %d", status)
	}
	if status := do(t, "POST", itemURL+"/archive", other, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 archiving foreign item, got %d", status)
	}
}

func TestCollectionsAndSharing(t *testing.T) {
	server, token := setupTestServer(t, nil)

	price := 250.0
	var ids []int64
	for _, name := range []string{"Tent", "Stove"} {
		var item model.Item
		do(t, "POST", server.URL+"/api/items", token, map[string]any{
			"name": name, "description": name + " desc", "price": price,
		}, &item)
		ids = append(ids, item.ID)
	}

	var c model.Collection
	if status := do(t, "POST", server.URL+"/api/collections", token, map[string]string{"name": "Camping"}, &c); status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if c.Share == nil || c.Share.IsEnabled {
		t.Fatalf("new collection share = %+v", c.Share)
	}
	collectionURL := fmt.Sprintf("%s/api/collections/%d", server.URL, c.ID)

	for _, id := range ids {
		if status := do(t, "POST", collectionURL+"/items", token, map[string]any{"item_id": id}, &c); status != http.StatusOK {
			t.Fatalf("expected 200 adding item, got %d", status)
		}
	}
	if status := do(t, "POST", collectionURL+"/items", token, map[string]any{"item_id": ids[0]}, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate membership, got %d", status)
	}

	if status := do(t, "PUT", collectionURL+"/order", token, map[string]any{"item_ids": []int64{ids[1]}}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for partial order, got %d", status)
	}
	if status := do(t, "PUT", collectionURL+"/order", token, map[string]any{"item_ids": []int64{ids[1], ids[0]}}, &c); status != http.StatusOK {
		t.Fatalf("expected 200 for reorder, got %d", status)
	}
	if len(c.Items) != 2 || c.Items[0].Item.Name != "Stove" {
		t.Errorf("order after reorder = %+v", c.Items)
	}

	sharedURL := server.URL + "/api/shared/" + c.Share.ShareID
	resp, _ := http.Get(sharedURL)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for disabled share, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	var share model.ShareSettings
	status := do(t, "PUT", collectionURL+"/share", token, map[string]any{
		"is_enabled": true,
		"display":    map[string]bool{"description": false, "quantity": true, "price": false},
	}, &share)
	if status != http.StatusOK || !share.IsEnabled {
		t.Fatalf("enable share: status %d, %+v", status, share)
	}

	resp, _ = http.Get(sharedURL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for shared view, got %d", resp.StatusCode)
	}
	var raw map[string]any
	json.NewDecoder(resp.Body).Decode(&raw)
	resp.Body.Close()
	items, _ := raw["items"].([]any)
	if raw["name"] != "Camping" || len(items) != 2 {
		t.Fatalf("shared view = %v", raw)
	}
	first, _ := items[0].(map[string]any)
	if _, ok := first["price"]; ok {
		t.Error("shared view exposes hidden price")
	}
	if _, ok := first["description"]; ok {
		t.Error("shared view exposes hidden description")
	}
	if first["quantity"] != float64(1) {
		t.Errorf("shared quantity = %v, want 1", first["quantity"])
	}

	if status := do(t, "POST", collectionURL+"/share/rotate", token, nil, &share); status != http.StatusOK {
		t.Fatalf("expected 200 for rotate, got %d", status)
	}
	resp, _ = http.Get(sharedURL)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for rotated share id, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp, _ = http.Get(server.URL + "/api/shared/" + share.ShareID)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for new share id, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	other := register(t, server, "bob", "password123")
	if status := do(t, "GET", collectionURL, other, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for foreign collection, got %d", status)
	}

	if status := do(t, "DELETE", collectionURL, token, nil, nil); status != http.StatusNoContent {
		t.Errorf("expected 204 for delete, got %d", status)
	}
}

func TestAssistantAsk(t *testing.T) {
	m := &replyModel{}
	server, token := setupTestServer(t, m)

	var item model.Item
	do(t, "POST", server.URL+"/api/items", token, map[string]any{"name": "Hammer"}, &item)
	m.setReply(fmt.Sprintf("You have a **Hammer** [ITEM:%d].", item.ID))

	var answer assistant.Answer
	status := do(t, "POST", server.URL+"/api/assistant/ask", token, map[string]string{"question": "Where is my hammer?"}, &answer)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if answer.Answer != "You have a Hammer." {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.FoundItems) != 1 || answer.FoundItems[0].ID != item.ID {
		t.Errorf("found items = %+v", answer.FoundItems)
	}
	if answer.Intent.Type != assistant.IntentLocation {
		t.Errorf("intent = %q, want location", answer.Intent.Type)
	}
	if answer.QueryStatus.Remaining != 1 || answer.QueryStatus.Total != 2 {
		t.Errorf("query status = %+v", answer.QueryStatus)
	}

	if status := do(t, "POST", server.URL+"/api/assistant/ask", token, map[string]string{"question": "   "}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for blank question, got %d", status)
	}
	long := strings.Repeat("a", assistant.MaxQuestionLength+1)
	if status := do(t, "POST", server.URL+"/api/assistant/ask", token, map[string]string{"question": long}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for long question, got %d", status)
	}

	do(t, "POST", server.URL+"/api/assistant/ask", token, map[string]string{"question": "What do I have?"}, nil)

	var exceeded struct {
		Error  string                `json:"error"`
		Status assistant.QuotaStatus `json:"status"`
	}
	status = do(t, "POST", server.URL+"/api/assistant/ask", token, map[string]string{"question": "Anything else?"}, &exceeded)
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if exceeded.Status.Remaining != 0 || exceeded.Status.ResetAt == nil {
		t.Errorf("exceeded status = %+v", exceeded.Status)
	}
	if n := m.callCount(); n != 2 {
		t.Errorf("model calls = %d, want 2", n)
	}

	var qs assistant.QuotaStatus
	if status := do(t, "GET", server.URL+"/api/assistant/query-status", token, nil, &qs); status != http.StatusOK {
		t.Fatalf("expected 200 for query status, got %d", status)
	}
	if qs.Remaining != 0 || qs.Total != 2 {
		t.Errorf("query status = %+v", qs)
	}
}

func TestAssistantUnavailable(t *testing.T) {
	server, token := setupTestServer(t, nil)

	status := do(t, "POST", server.URL+"/api/assistant/ask", token, map[string]string{"question": "Where is my drill?"}, nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a model, got %d", status)
	}

	var qs assistant.QuotaStatus
	do(t, "GET", server.URL+"/api/assistant/query-status", token, nil, &qs)
	if qs.Remaining != 2 {
		t.Errorf("remaining = %d, want untouched quota", qs.Remaining)
	}

	var as assistant.QuotaStatus
	if status := do(t, "GET", server.URL+"/api/assistant/analysis-status", token, nil, &as); status != http.StatusOK {
		t.Fatalf("expected 200 for analysis status, got %d", status)
	}
	if as.Remaining != assistant.DefaultAnalysisLimit || as.ResetAt != nil {
		t.Errorf("analysis status = %+v", as)
	}

	status = do(t, "POST", server.URL+"/api/assistant/analyze-image", token, map[string]string{
		"image": "not base64!", "mime_type": "image/png",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed image, got %d", status)
	}
}

func TestAssistantSuggestions(t *testing.T) {
	server, token := setupTestServer(t, nil)

	var result assistant.SuggestionResult
	if status := do(t, "GET", server.URL+"/api/assistant/suggestions", token, nil, &result); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(result.Suggestions) != 0 || result.QueryStatus != nil {
		t.Errorf("empty inventory result = %+v", result)
	}

	var garage model.Location
	do(t, "POST", server.URL+"/api/locations", token, map[string]string{"name": "Garage"}, &garage)
	for _, name := range []string{"Drill", "Saw", "Ladder"} {
		do(t, "POST", server.URL+"/api/items", token, map[string]any{"name": name, "location_id": garage.ID}, nil)
	}

	if status := do(t, "GET", server.URL+"/api/assistant/suggestions?limit=3", token, nil, &result); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(result.Suggestions) != 2 {
		t.Fatalf("suggestions = %+v", result.Suggestions)
	}
	if result.Suggestions[0].Name != "Garage Items" || result.Suggestions[1].Name != "Recent Additions" {
		t.Errorf("suggestion order = %q, %q", result.Suggestions[0].Name, result.Suggestions[1].Name)
	}
	if result.TotalUncollectedItems != 3 {
		t.Errorf("uncollected = %d, want 3", result.TotalUncollectedItems)
	}
	if result.QueryStatus == nil || result.QueryStatus.Remaining != 1 {
		t.Errorf("query status = %+v", result.QueryStatus)
	}

	if status := do(t, "GET", server.URL+"/api/assistant/suggestions?limit=zero", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", status)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	server, _ := setupTestServer(t, nil)

	for _, path := range []string{"/api/items", "/api/collections", "/api/assistant/query-status", "/api/me"} {
		resp, _ := http.Get(server.URL + path)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	if status := do(t, "GET", server.URL+"/api/items", "not-a-token", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", status)
	}
}

func TestDeleteAccount(t *testing.T) {
	server, token := setupTestServer(t, nil)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "password123"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	var login loginResponse
	json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()

	if status := do(t, "DELETE", server.URL+"/api/me", token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", status)
	}
	if status := do(t, "GET", server.URL+"/api/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after deleting account, got %d", status)
	}
	if status := do(t, "GET", server.URL+"/api/items", login.Token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for other session of deleted account, got %d", status)
	}

	// The username is free again.
	register(t, server, "alice", "password123")
}

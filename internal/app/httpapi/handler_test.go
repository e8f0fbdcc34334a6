package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	app "github.com/CalcStack/calc_service/internal/app"
	"github.com/CalcStack/calc_service/internal/app/auth"
	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	tokens, err := auth.NewTokenService([]byte("handler-test-secret"), time.Minute, "calcserver-test")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	application, err := app.New(app.Stores{}, tokens, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	return NewHandler(application)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, h http.Handler, username, email string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/users/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", username, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/users/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if token.TokenType != "bearer" || token.AccessToken == "" {
		t.Fatalf("unexpected token payload: %s", rec.Body.String())
	}
	return token.AccessToken
}

func TestInfoAndHealth(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("info: expected 200, got %d", rec.Code)
	}
	var info struct {
		Service    string   `json:"service"`
		Operations []string `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if len(info.Operations) != 4 {
		t.Fatalf("expected 4 built-in operations, got %v", info.Operations)
	}

	rec = doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
}

func TestCalculationLifecycle(t *testing.T) {
	h := newTestHandler(t)
	token := registerAndLogin(t, h, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{
		"a": 10, "b": 5, "type": "Add",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created calculation.Calculation
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Result != 15 {
		t.Fatalf("expected result 15, got %v", created.Result)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}

	rec = doJSON(t, h, http.MethodGet, "/calculations", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("browse: expected 200, got %d", rec.Code)
	}
	var list []calculation.Calculation
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("expected one record %s, got %v", created.ID, list)
	}

	rec = doJSON(t, h, http.MethodGet, "/calculations/"+created.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/calculations/"+created.ID, token, map[string]interface{}{
		"type": "Multiply",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated calculation.Calculation
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Result != 50 {
		t.Fatalf("expected recomputed result 50, got %v", updated.Result)
	}

	rec = doJSON(t, h, http.MethodPut, "/calculations/"+created.ID, token, map[string]interface{}{
		"a": 9, "b": 3, "type": "Divide",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Result != 3 {
		t.Fatalf("expected result 3, got %v", updated.Result)
	}

	rec = doJSON(t, h, http.MethodDelete, "/calculations/"+created.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/calculations/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("read deleted: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/calculations/"+created.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double delete: expected 404, got %d", rec.Code)
	}
}

func TestDivideByZeroRejected(t *testing.T) {
	h := newTestHandler(t)
	token := registerAndLogin(t, h, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{
		"a": 10, "b": 0, "type": "Divide",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/calculations", token, nil)
	var list []calculation.Calculation
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected create must not persist, got %v", list)
	}
}

func TestUnknownOperationRejected(t *testing.T) {
	h := newTestHandler(t)
	token := registerAndLogin(t, h, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{
		"a": 1, "b": 2, "type": "Modulo",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMalformedBodyRejected(t *testing.T) {
	h := newTestHandler(t)
	token := registerAndLogin(t, h, "alice", "alice@example.com")

	req := httptest.NewRequest(http.MethodPost, "/calculations", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{
		"a": 1, "b": 2, "type": "Add", "result": 99,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/calculations"},
		{http.MethodPost, "/calculations"},
		{http.MethodGet, "/calculations/some-id"},
		{http.MethodDelete, "/users/me"},
	} {
		rec := doJSON(t, h, tc.method, tc.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/calculations", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rec.Code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tokens, err := auth.NewTokenService([]byte("handler-test-secret"), time.Minute, "calcserver-test")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	application, err := app.New(app.Stores{}, tokens, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	h := NewHandler(application)

	_, err = application.Principals.Register(context.Background(), "alice", "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	expiredSvc, err := auth.NewTokenService([]byte("handler-test-secret"), time.Nanosecond, "calcserver-test")
	if err != nil {
		t.Fatalf("expired token service: %v", err)
	}
	expired, err := expiredSvc.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	rec := doJSON(t, h, http.MethodGet, "/calculations", expired, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestTenantIsolation(t *testing.T) {
	h := newTestHandler(t)
	aliceToken := registerAndLogin(t, h, "alice", "alice@example.com")
	malloryToken := registerAndLogin(t, h, "mallory", "mallory@example.com")

	rec := doJSON(t, h, http.MethodPost, "/calculations", aliceToken, map[string]interface{}{
		"a": 1, "b": 2, "type": "Add",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var created calculation.Calculation
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/calculations/"+created.ID, malloryToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign read: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/calculations/"+created.ID, malloryToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/calculations", malloryToken, nil)
	var list []calculation.Calculation
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("foreign browse must be empty, got %v", list)
	}

	rec = doJSON(t, h, http.MethodGet, "/calculations/"+created.ID, aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner read after foreign attempts: expected 200, got %d", rec.Code)
	}
}

func TestRegisterConflictsAndValidation(t *testing.T) {
	h := newTestHandler(t)
	registerAndLogin(t, h, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/users/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate username: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/users/register", "", map[string]string{
		"username": "ab", "email": "ab@example.com", "password": "password123",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short username: expected 422, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/users/login", "", map[string]string{
		"username": "alice", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	h := newTestHandler(t)
	token := registerAndLogin(t, h, "alice", "alice@example.com")

	rec := doJSON(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{
		"a": 1, "b": 2, "type": "Add",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/users/me", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete account: expected 204, got %d", rec.Code)
	}

	// The token still verifies but its subject is gone.
	rec = doJSON(t, h, http.MethodGet, "/calculations", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deleted account: expected 401, got %d", rec.Code)
	}
}

func TestBrowsePagingQuery(t *testing.T) {
	h := newTestHandler(t)
	token := registerAndLogin(t, h, "alice", "alice@example.com")

	for i := 0; i < 5; i++ {
		rec := doJSON(t, h, http.MethodPost, "/calculations", token, map[string]interface{}{
			"a": float64(i), "b": 1, "type": "Add",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d: expected 201, got %d", i, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/calculations?offset=2&limit=2", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("browse: expected 200, got %d", rec.Code)
	}
	var page []calculation.Calculation
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page))
	}
	if page[0].A != 2 || page[1].A != 3 {
		t.Fatalf("expected creation order slice [2 3], got %v %v", page[0].A, page[1].A)
	}
}

func TestPrincipalPasswordHashNeverSerialized(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/users/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for key := range raw {
		if key == "password_hash" || key == "password" {
			t.Fatalf("response leaks credential field %q: %s", key, rec.Body.String())
		}
	}
}

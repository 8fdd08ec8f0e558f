package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/config"
	"stockroom-server/internal/http/middleware"
	"stockroom-server/internal/models"
	"stockroom-server/internal/services"
	"stockroom-server/internal/store/memory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testServer struct {
	router *gin.Engine
	auth   *services.AuthService
	store  *memory.Store
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		SecretKey:          "test-secret",
		TokenExpiry:        time.Hour,
		PasswordMinLen:     4,
		RateLimitPerMinute: 100,
	}
	if mutate != nil {
		mutate(cfg)
	}

	st := memory.New()
	authService := services.NewAuthService(st, nil, cfg)
	itemService := services.NewItemService(st)

	router := NewRouter(Dependencies{
		Config:      cfg,
		AuthService: authService,
		ItemService: itemService,
		Logger:      testLogger(),
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitPerMinute),
	})

	return &testServer{router: router, auth: authService, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createUser(t *testing.T, username, password string, roles ...models.Role) {
	t.Helper()
	_, err := ts.auth.CreateUser(context.Background(), services.CreateUserInput{
		Username: username,
		Password: password,
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/login/access-token", "", gin.H{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return resp.AccessToken
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %s)", err, rec.Body.String())
	}
	return resp.Error.Code
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/users/me", "/api/v1/items"} {
		rec := ts.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token: status %d", path, rec.Code)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/users/me", "bogus-token", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad token: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLoginAndTestToken(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret1")
	token := ts.login(t, "alice", "secret1")

	rec := ts.do(t, http.MethodPost, "/api/v1/login/test-token", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("test-token: status %d body %s", rec.Code, rec.Body.String())
	}

	var user struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("token resolved to %q", user.Username)
	}
}

func TestOpenRegistrationToggle(t *testing.T) {
	body := gin.H{"username": "newbie", "password": "secret1"}

	closed := newTestServer(t, nil)
	rec := closed.do(t, http.MethodPost, "/api/v1/users/open", "", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("closed registration: status %d", rec.Code)
	}

	open := newTestServer(t, func(cfg *config.Config) { cfg.UsersOpenRegistration = true })
	rec = open.do(t, http.MethodPost, "/api/v1/users/open", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open registration: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = open.do(t, http.MethodPost, "/api/v1/users/open", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate registration: status %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "CONFLICT" {
		t.Fatalf("duplicate registration code: %s", code)
	}
}

func TestUserListSuperuserOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret1")
	ts.createUser(t, "root", "root-secret", models.RoleSuperuser)

	aliceToken := ts.login(t, "alice", "secret1")
	rec := ts.do(t, http.MethodGet, "/api/v1/users", aliceToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-superuser list: status %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "FORBIDDEN" {
		t.Fatalf("non-superuser list code: %s", code)
	}

	rootToken := ts.login(t, "root", "root-secret")
	rec = ts.do(t, http.MethodGet, "/api/v1/users", rootToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("superuser list: status %d body %s", rec.Code, rec.Body.String())
	}

	var users []struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestRolesListSuperuserOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret1")
	ts.createUser(t, "root", "root-secret", models.RoleSuperuser)

	aliceToken := ts.login(t, "alice", "secret1")
	rec := ts.do(t, http.MethodGet, "/api/v1/roles", aliceToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-superuser roles: status %d", rec.Code)
	}

	rootToken := ts.login(t, "root", "root-secret")
	rec = ts.do(t, http.MethodGet, "/api/v1/roles", rootToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("superuser roles: status %d body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode roles: %v", err)
	}
	if len(resp.Roles) != 2 || resp.Roles[0] != "admin" || resp.Roles[1] != "superuser" {
		t.Fatalf("unexpected roles: %v", resp.Roles)
	}
}

func TestUserGetByUsernameSelfOrSuperuser(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret1")
	ts.createUser(t, "bob", "secret1")

	aliceToken := ts.login(t, "alice", "secret1")

	rec := ts.do(t, http.MethodGet, "/api/v1/users/alice", aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("self lookup: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/users/bob", aliceToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("foreign lookup: status %d", rec.Code)
	}
}

func TestItemCRUDOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret1")
	token := ts.login(t, "alice", "secret1")

	rec := ts.do(t, http.MethodPost, "/api/v1/items", token, gin.H{"title": "bicycle", "description": "red"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: status %d body %s", rec.Code, rec.Body.String())
	}

	var item struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		OwnerUsername string `json:"owner_username"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.OwnerUsername != "alice" {
		t.Fatalf("owner not set: %+v", item)
	}

	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/v1/items/%s", item.ID), token, gin.H{"title": "blue bicycle"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update item: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%s", item.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get item: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/items/%s", item.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete item: status %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%s", item.ID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted item: status %d", rec.Code)
	}
}

func TestItemUpdateByNonOwnerRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret1")
	ts.createUser(t, "bob", "secret1")

	aliceToken := ts.login(t, "alice", "secret1")
	bobToken := ts.login(t, "bob", "secret1")

	rec := ts.do(t, http.MethodPost, "/api/v1/items", aliceToken, gin.H{"title": "private"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: status %d", rec.Code)
	}
	var item struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}

	rec = ts.do(t, http.MethodPut, fmt.Sprintf("/api/v1/items/%s", item.ID), bobToken, gin.H{"title": "stolen"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("foreign update: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/items/%s", item.ID), aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get item: status %d", rec.Code)
	}
	var got struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if got.Title != "private" {
		t.Fatalf("item was modified: %+v", got)
	}
}

func TestItemSearch(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createUser(t, "alice", "secret1")
	token := ts.login(t, "alice", "secret1")

	for _, title := range []string{"red bicycle", "green wagon"} {
		rec := ts.do(t, http.MethodPost, "/api/v1/items", token, gin.H{"title": title})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %q: status %d", title, rec.Code)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/items/search?q=bicycle", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d body %s", rec.Code, rec.Body.String())
	}
	var items []struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 1 || items[0].Title != "red bicycle" {
		t.Fatalf("unexpected search result: %+v", items)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/items/search", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("search without q: status %d", rec.Code)
	}
}

func TestRateLimitOnAuthEndpoints(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.RateLimitPerMinute = 2 })

	var last int
	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/api/v1/login/access-token", "", gin.H{
			"username": "ghost",
			"password": "whatever",
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d", last)
	}
}

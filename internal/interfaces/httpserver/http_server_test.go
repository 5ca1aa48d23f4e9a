package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-api/internal/config"
	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/notification"
	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/auth"
	"portal-api/internal/infrastructure/lock"
	"portal-api/internal/infrastructure/repository/filestore"
	"portal-api/internal/infrastructure/session"
	"portal-api/internal/interfaces/httpserver"
	"portal-api/internal/interfaces/httpserver/handlers"
	"portal-api/internal/interfaces/httpserver/middlewares"
	"portal-api/internal/interfaces/httpserver/routes"
	"portal-api/internal/utils/pii"
)

type fakeReadiness struct{ err error }

func (f fakeReadiness) Ready(context.Context) error { return f.err }

type testEnv struct {
	server *httptest.Server
	users  user.Service
}

func newTestEnv(t *testing.T, readiness httpserver.ReadinessChecker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zerolog.Nop()
	cfg := &config.Config{
		ServiceName:     "portal-api-test",
		Environment:     "test",
		AllowedOrigins:  []string{"http://localhost:3000"},
		MaxBodyBytes:    4096,
		ShutdownTimeout: time.Second,
	}
	sanitizer := pii.NewSanitizer(pii.LevelHashed, "test")
	store := filestore.NewMemory(log)

	users := user.NewService(filestore.NewUserRepository(store), sanitizer, log)
	chats := chat.NewService(filestore.NewChatRepository(store), notification.Noop{}, sanitizer, log)
	appointments := appointment.NewService(filestore.NewAppointmentRepository(store), lock.NewLocal(), notification.Noop{}, sanitizer, time.UTC, log)

	sessions, err := session.NewMemoryStore(100, time.Hour)
	require.NoError(t, err)
	resolver := auth.NewResolver(sessions, auth.NewTokens("test-secret", time.Hour), log)
	identity := middlewares.NewIdentity(resolver, middlewares.CookieSettings{SessionTTL: time.Hour}, log)
	limiter, err := middlewares.NewLimiterPool(60, 3, 100)
	require.NoError(t, err)

	handlerProvider := handlers.NewProvider(users, chats, appointments, identity, log)
	routeProvider := routes.NewProvider(handlerProvider, identity, limiter, users, log)
	srv := httpserver.New(cfg, log, routeProvider, readiness)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, users: users}
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *testEnv) do(t *testing.T, client *http.Client, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (e *testEnv) register(t *testing.T, client *http.Client, email string) {
	t.Helper()
	status, body := e.do(t, client, http.MethodPost, "/api/register", map[string]string{
		"first_name": "Test",
		"last_name":  "User",
		"email":      email,
		"password":   "secret123",
	})
	require.Equal(t, http.StatusOK, status, body)
}

func (e *testEnv) adminClient(t *testing.T) *http.Client {
	t.Helper()
	_, err := e.users.CreateAdmin(context.Background(), user.RegisterInput{
		FirstName: "Portal", LastName: "Admin", Email: "admin@example.com", Password: "admin-secret",
	})
	require.NoError(t, err)

	client := e.client(t)
	status, body := e.do(t, client, http.MethodPost, "/api/login", map[string]string{
		"email": "admin@example.com", "password": "admin-secret",
	})
	require.Equal(t, http.StatusOK, status, body)
	return client
}

func TestCoreRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.client(t)

	status, body := env.do(t, client, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, _ = env.do(t, client, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)

	resp, err := client.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyzReportsStorageFailure(t *testing.T) {
	env := newTestEnv(t, fakeReadiness{err: errors.New("connection refused")})

	status, body := env.do(t, env.client(t), http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["status"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.client(t)

	status, body := env.do(t, client, http.MethodGet, "/api/check-session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_authenticated"])

	env.register(t, client, "Ada@Example.com")

	status, body = env.do(t, client, http.MethodGet, "/api/check-session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_authenticated"])

	status, body = env.do(t, client, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.NotContains(t, body, "password_hash")

	status, body = env.do(t, client, http.MethodPost, "/api/register", map[string]string{
		"first_name": "Ada", "last_name": "L", "email": "ada@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, status, body)

	status, _ = env.do(t, client, http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, client, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthTokenRestoresIdentityWithoutSession(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.client(t)
	env.register(t, client, "token@example.com")

	u, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/check-session", nil)
	require.NoError(t, err)
	var token string
	for _, c := range client.Jar.Cookies(u.URL) {
		if c.Name == middlewares.AuthCookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	// A fresh client that only carries the auth cookie.
	bare := &http.Client{Timeout: 5 * time.Second}
	u.AddCookie(&http.Cookie{Name: middlewares.AuthCookieName, Value: token})
	resp, err := bare.Do(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["is_authenticated"])

	var sessionIssued bool
	for _, c := range resp.Cookies() {
		if c.Name == middlewares.SessionCookieName && c.Value != "" {
			sessionIssued = true
		}
	}
	assert.True(t, sessionIssued, "token login should backfill a session")
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.client(t)

	creds := map[string]string{"email": "nobody@example.com", "password": "wrong-password"}
	for i := 0; i < 3; i++ {
		status, _ := env.do(t, client, http.MethodPost, "/api/login", creds)
		require.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := env.do(t, client, http.MethodPost, "/api/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.NotEmpty(t, body["error"])
}

func TestAppointmentRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	anon := env.client(t)
	status, _ := env.do(t, anon, http.MethodGet, "/api/termine", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	alice := env.client(t)
	env.register(t, alice, "alice@example.com")
	bob := env.client(t)
	env.register(t, bob, "bob@example.com")

	booking := map[string]string{"name": "Alice", "email": "alice@example.com", "date": "2026-03-02", "time": "09:30"}
	status, body := env.do(t, alice, http.MethodPost, "/api/termine", booking)
	require.Equal(t, http.StatusOK, status, body)
	appt := body["appointment"].(map[string]any)
	id := int64(appt["id"].(float64))

	booking["name"], booking["email"] = "Bob", "bob@example.com"
	status, _ = env.do(t, bob, http.MethodPost, "/api/termine", booking)
	assert.Equal(t, http.StatusConflict, status)

	booking["time"] = "09:15"
	status, _ = env.do(t, bob, http.MethodPost, "/api/termine", booking)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, bob, http.MethodGet, "/api/termine/belegt", nil)
	require.Equal(t, http.StatusOK, status)
	slots := body["slots"].([]any)
	require.Len(t, slots, 1)
	assert.Equal(t, map[string]any{"date": "2026-03-02", "time": "09:30"}, slots[0])

	path := "/api/termine/" + jsonNumber(id)
	status, _ = env.do(t, bob, http.MethodPatch, path, map[string]string{"date": "2026-03-03", "time": "10:00"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = env.do(t, bob, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, alice, http.MethodPatch, path, map[string]string{"date": "2026-03-03", "time": "10:00"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "10:00", body["appointment"].(map[string]any)["time"])

	status, body = env.do(t, alice, http.MethodGet, "/api/termine", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["appointments"], 1)

	status, _ = env.do(t, alice, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, alice, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, alice, http.MethodDelete, "/api/termine/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.do(t, env.client(t), http.MethodGet, "/api/admin/chats", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	applicant := env.client(t)
	env.register(t, applicant, "applicant@example.com")
	status, _ = env.do(t, applicant, http.MethodGet, "/api/admin/chats", nil)
	assert.Equal(t, http.StatusForbidden, status)

	admin := env.adminClient(t)
	status, body := env.do(t, admin, http.MethodGet, "/api/admin/chats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["conversations"])
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.client(t)

	status, _ := env.do(t, client, http.MethodPut, "/api/user", map[string]string{"first_name": "A", "last_name": "B", "email": "a@example.com"})
	assert.Equal(t, http.StatusUnauthorized, status)

	env.register(t, client, "taken@example.com")
	env.register(t, env.client(t), "other@example.com")

	status, body := env.do(t, client, http.MethodPut, "/api/user", map[string]string{
		"first_name": "Ada", "last_name": "Byron", "email": "Ada.Byron@Example.com",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	profile := body["user"].(map[string]any)
	assert.Equal(t, "ada.byron@example.com", profile["email"])
	assert.NotContains(t, profile, "password_hash")

	status, body = env.do(t, client, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Byron", body["last_name"])

	status, _ = env.do(t, client, http.MethodPut, "/api/user", map[string]string{
		"first_name": "Ada", "last_name": "Byron", "email": "other@example.com",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, client, http.MethodPut, "/api/user", map[string]string{"first_name": "Ada", "email": "ada@example.com"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.adminClient(t)

	applicant := env.client(t)
	env.register(t, applicant, "applicant@example.com")
	status, _ := env.do(t, applicant, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, admin, http.MethodGet, "/api/user", nil)
	require.Equal(t, http.StatusOK, status)
	adminPath := "/api/admin/users/" + jsonNumber(int64(body["id"].(float64)))

	status, body = env.do(t, admin, http.MethodPost, "/api/admin/users", map[string]string{
		"first_name": "Ben", "last_name": "Kurz", "email": "ben@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, status, body)
	created := body["user"].(map[string]any)
	assert.Equal(t, "applicant", created["role"])
	benPath := "/api/admin/users/" + jsonNumber(int64(created["id"].(float64)))

	status, _ = env.do(t, admin, http.MethodPost, "/api/admin/users", map[string]string{
		"first_name": "Ben", "last_name": "Kurz", "email": "BEN@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = env.do(t, admin, http.MethodPost, "/api/admin/users", map[string]string{
		"first_name": "C", "last_name": "D", "email": "c@example.com", "password": "secret123", "role": "owner",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, admin, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["users"], 3)

	status, body = env.do(t, admin, http.MethodPut, benPath, map[string]string{
		"first_name": "Ben", "last_name": "Lang", "email": "ben@example.com", "role": "admin",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "admin", body["user"].(map[string]any)["role"])

	status, _ = env.do(t, admin, http.MethodPut, adminPath, map[string]string{
		"first_name": "Portal", "last_name": "Admin", "email": "admin@example.com", "role": "applicant",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = env.do(t, admin, http.MethodPut, "/api/admin/users/999", map[string]string{
		"first_name": "X", "last_name": "Y", "email": "x@example.com", "role": "applicant",
	})
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, admin, http.MethodPut, "/api/admin/users/abc", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, admin, http.MethodDelete, adminPath, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, admin, http.MethodDelete, benPath, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, admin, http.MethodDelete, benPath, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, admin, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["users"], 2)
}

func TestChatLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	visitor := env.client(t)
	admin := env.adminClient(t)

	status, body := env.do(t, visitor, http.MethodPost, "/api/chat/session", map[string]string{
		"first_name": "Grace", "last_name": "Hopper", "email": "Grace@Example.com",
	})
	require.Equal(t, http.StatusOK, status, body)
	conversationID := body["conversation_id"].(string)
	require.True(t, strings.HasPrefix(conversationID, "chat_"))

	// Identity and conversation come from the session.
	status, body = env.do(t, visitor, http.MethodPost, "/api/chat/messages", map[string]string{"message": "Hello"})
	require.Equal(t, http.StatusOK, status, body)
	msg := body["message"].(map[string]any)
	assert.Equal(t, "grace@example.com", msg["visitor_email"])
	assert.Equal(t, conversationID, msg["conversation_id"])

	status, body = env.do(t, visitor, http.MethodGet, "/api/chat/messages", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["messages"], 1)

	status, body = env.do(t, visitor, http.MethodGet, "/api/chat/conversations", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["conversations"], 1)

	status, body = env.do(t, admin, http.MethodPost, "/api/admin/chats/"+conversationID+"/reply", map[string]string{"message": "Hi Grace"})
	require.Equal(t, http.StatusOK, status, body)
	reply := body["message"].(map[string]any)
	assert.Equal(t, "Portal Admin", reply["admin_display_name"])
	assert.Equal(t, "grace@example.com", reply["visitor_email"])

	status, body = env.do(t, admin, http.MethodPut, "/api/admin/chats/messages/"+jsonNumber(int64(reply["id"].(float64))), map[string]string{"message": "Hi Grace!"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Hi Grace!", body["message"].(map[string]any)["body"])

	status, _ = env.do(t, admin, http.MethodPatch, "/api/admin/chats/"+conversationID+"/status", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, admin, http.MethodPatch, "/api/admin/chats/"+conversationID+"/status", map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, status, body)
	assert.NotNil(t, body["conversation"].(map[string]any)["closed_at"])

	status, _ = env.do(t, visitor, http.MethodPost, "/api/chat/messages", map[string]string{"message": "Still there?"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, admin, http.MethodPatch, "/api/admin/chats/"+conversationID+"/status", map[string]string{"status": "open"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, visitor, http.MethodPost, "/api/chat/messages", map[string]string{"message": "Still there?"})
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, admin, http.MethodDelete, "/api/admin/chats/"+conversationID, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, admin, http.MethodDelete, "/api/admin/chats/"+conversationID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, visitor, http.MethodGet, "/api/chat/messages?conversationId="+conversationID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, admin, http.MethodGet, "/api/admin/chats/"+conversationID+"/messages", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, visitor, http.MethodPost, "/api/chat/messages", map[string]string{"message": "Hello?"})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, admin, http.MethodGet, "/api/admin/chats", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["conversations"])
}

func TestChatMessageRequiresIdentity(t *testing.T) {
	env := newTestEnv(t, nil)
	client := env.client(t)

	status, body := env.do(t, client, http.MethodPost, "/api/chat/messages", map[string]string{
		"conversation_id": "support-1",
		"message":         "Hello",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	status, _ = env.do(t, client, http.MethodGet, "/api/chat/messages", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, client, http.MethodGet, "/api/chat/conversations", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["conversations"])
}

func TestRequestBodyLimit(t *testing.T) {
	env := newTestEnv(t, nil)

	status, _ := env.do(t, env.client(t), http.MethodPost, "/api/chat/session", map[string]string{
		"first_name": strings.Repeat("x", 8192),
		"last_name":  "Hopper",
		"email":      "grace@example.com",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestRequestIDEchoed(t *testing.T) {
	env := newTestEnv(t, nil)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-123")
	resp, err := env.client(t).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
}

func jsonNumber(id int64) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

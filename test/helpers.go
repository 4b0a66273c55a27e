package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aryan0dhankhar/landledger/internal/handler"
	"github.com/aryan0dhankhar/landledger/internal/repository"
	"github.com/aryan0dhankhar/landledger/internal/security"
	"github.com/aryan0dhankhar/landledger/internal/security/auth"
	"github.com/aryan0dhankhar/landledger/internal/service"
	"github.com/aryan0dhankhar/landledger/internal/session"
	"github.com/aryan0dhankhar/landledger/internal/verification"
)

const (
	AdminEmail    = "admin@blockland.com"
	AdminPassword = "admin123"
)

// TestServerHelper runs the full HTTP stack over an in-memory store
type TestServerHelper struct {
	Server *httptest.Server
	Logger *slog.Logger
	Store  *repository.MemoryStore
	Runner *verification.Runner
	t      *testing.T
}

// NewTestServer wires every service the way cmd/server does, with instant
// verification stages and no external dependencies.
func NewTestServer(t *testing.T) *TestServerHelper {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := repository.NewMemoryStore(ctx, nil, log)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	sessions := session.NewManager(auth.NewTokenManager("test-secret", "landledger"), session.NewMemoryStore(), time.Hour, log)
	runner := verification.NewRunner(store, verification.SimulatedExecutors(verification.Timing{}), log)
	authz := security.NewAuthorizationServiceV2(log)

	authService := service.NewAuthService(store, sessions, runner, log)
	if err := authService.EnsureAdmin(ctx, AdminEmail, AdminPassword); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	landService := service.NewLandService(store, authz, log)
	transferService := service.NewTransferService(store, authz.AuthorizationService, log)
	adminService := service.NewAdminService(store, authz.AuthorizationService, sessions, runner, log)
	dashboardService := service.NewDashboardService(store, log)

	router := handler.NewRouter(handler.RouterDeps{
		Auth:         handler.NewAuthHandler(authService, log),
		Lands:        handler.NewLandHandler(landService, nil, log),
		Verification: handler.NewVerificationHandler(runner, log, nil),
		Transfers:    handler.NewTransferHandler(transferService, log),
		Dashboard:    handler.NewDashboardHandler(dashboardService, log),
		Admin:        handler.NewAdminHandler(adminService, log),
		Health:       handler.NewHealthHandler(nil, log),
		Sessions:     sessions,
		Users:        authService,
		Logger:       log,
	})

	h := &TestServerHelper{
		Server: httptest.NewServer(router),
		Logger: log,
		Store:  store,
		Runner: runner,
		t:      t,
	}
	t.Cleanup(h.Close)
	return h
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.Runner.Shutdown(ctx)
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// Do sends a JSON request with an optional bearer token and decodes the response into out
func (h *TestServerHelper) Do(method, path, token string, body, out any) *http.Response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, h.URL()+path, reader)
	if err != nil {
		h.t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("failed to decode %s %s response: %v", method, path, err)
		}
	}
	return resp
}

// Register signs up a user and returns its id and token
func (h *TestServerHelper) Register(name, email, password string) (string, string) {
	h.t.Helper()
	var res service.AuthResult
	resp := h.Do(http.MethodPost, "/api/auth/register", "", service.RegisterInput{
		Name: name, Email: email, Password: password, ConfirmPassword: password,
	}, &res)
	AssertStatusCode(h.t, resp, http.StatusCreated)
	return res.User.ID, res.Token
}

// Login returns a fresh token for the account
func (h *TestServerHelper) Login(email, password string) string {
	h.t.Helper()
	var res service.AuthResult
	resp := h.Do(http.MethodPost, "/api/auth/login", "", handler.LoginRequest{Email: email, Password: password}, &res)
	AssertStatusCode(h.t, resp, http.StatusOK)
	return res.Token
}

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType helper function
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	if ct := resp.Header.Get("Content-Type"); ct != expected {
		t.Errorf("Expected Content-Type %s, got %s", expected, ct)
	}
}

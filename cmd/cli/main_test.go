package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/repository"
)

type cliHarness struct {
	t    *testing.T
	home string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("LANDLEDGER_HOME", home)
	t.Setenv("FLAG_FAST_VERIFICATION", "true")
	t.Setenv("ADMIN_EMAIL", "root@example.com")
	t.Setenv("ADMIN_PASSWORD", "rootpass")
	return &cliHarness{t: t, home: home}
}

// exec runs one command the way a separate process invocation would
func (h *cliHarness) exec(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	code := run(context.Background(), args, &stdout, &stderr, log)
	return code, stdout.String(), stderr.String()
}

func (h *cliHarness) mustExec(args ...string) string {
	h.t.Helper()
	code, out, errOut := h.exec(args...)
	require.Equalf(h.t, 0, code, "command %v failed: %s", args, errOut)
	return out
}

func (h *cliHarness) snapshot() *repository.Snapshot {
	h.t.Helper()
	p, err := repository.NewFilePersister(filepath.Join(h.home, "store.json"))
	require.NoError(h.t, err)
	snap, err := p.Load(context.Background())
	require.NoError(h.t, err)
	require.NotNil(h.t, snap)
	return snap
}

func (h *cliHarness) currentUser() *domain.User {
	h.t.Helper()
	p, err := repository.NewFilePersister(filepath.Join(h.home, "store.json"))
	require.NoError(h.t, err)
	u, err := p.CurrentUser()
	require.NoError(h.t, err)
	return u
}

func (h *cliHarness) registerLand(title string) string {
	h.t.Helper()
	h.mustExec("land", "register", "-title", title, "-area", "1200", "-address", "1 Main Road",
		"-city", "Pune", "-state", "MH", "-country", "India", "-pincode", "411001")
	for _, l := range h.snapshot().Lands {
		if l.Title == title {
			return l.ID
		}
	}
	h.t.Fatalf("land %q not stored", title)
	return ""
}

func TestUsage(t *testing.T) {
	newHarness(t)
	var stdout, stderr bytes.Buffer
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr, log))
	assert.Contains(t, stdout.String(), "LandLedger CLI")

	stdout.Reset()
	assert.Equal(t, 0, run(context.Background(), []string{"help"}, &stdout, &stderr, log))
	assert.Contains(t, stdout.String(), "verify")
}

func TestUnknownCommandIsUsageError(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.exec("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")

	code, _, _ = h.exec("land", "register", "-bogus")
	assert.Equal(t, 2, code)
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"auth", "who"},
		{"land", "list"},
		{"transfer", "list"},
		{"dashboard"},
		{"admin", "users"},
	} {
		code, _, errOut := h.exec(args...)
		assert.Equal(t, 1, code, "%v", args)
		assert.Contains(t, errOut, "please log in first", "%v", args)
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	h := newHarness(t)

	out := h.mustExec("auth", "register", "-name", "Alice", "-email", " alice@example.com ", "-password", "secret")
	assert.Contains(t, out, "alice@example.com")

	current := h.currentUser()
	require.NotNil(t, current)
	assert.Equal(t, "alice@example.com", current.Email)
	assert.Empty(t, current.PasswordHash)

	assert.Contains(t, h.mustExec("auth", "who"), "Alice <alice@example.com>")

	h.mustExec("auth", "logout")
	assert.Nil(t, h.currentUser())
	h.mustExec("auth", "logout")

	code, _, errOut := h.exec("auth", "login", "-email", "alice@example.com", "-password", "wrong")
	assert.Equal(t, 1, code)
	assert.NotEmpty(t, errOut)

	h.mustExec("auth", "login", "-email", "alice@example.com", "-password", "secret")
	assert.Equal(t, "alice@example.com", h.currentUser().Email)
}

func TestPasswordPrompt(t *testing.T) {
	h := newHarness(t)
	prompts := []string{}
	orig := readPassword
	readPassword = func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "prompted", nil
	}
	t.Cleanup(func() { readPassword = orig })

	h.mustExec("auth", "register", "-name", "Bob", "-email", "bob@example.com")
	assert.Equal(t, []string{"Password: ", "Confirm password: "}, prompts)

	h.mustExec("auth", "logout")
	h.mustExec("auth", "login", "-email", "bob@example.com")
	assert.Len(t, prompts, 3)
}

func TestProfileAndPasswordChange(t *testing.T) {
	h := newHarness(t)
	h.mustExec("auth", "register", "-name", "Alice", "-email", "alice@example.com", "-password", "secret")

	h.mustExec("auth", "profile", "-name", "Alice Smith")
	assert.Equal(t, "Alice Smith", h.currentUser().Name)
	assert.Equal(t, "alice@example.com", h.currentUser().Email)

	code, _, _ := h.exec("auth", "password", "-old", "nope", "-new", "next")
	assert.Equal(t, 1, code)

	h.mustExec("auth", "password", "-old", "secret", "-new", "next")
	h.mustExec("auth", "logout")
	h.mustExec("auth", "login", "-email", "alice@example.com", "-password", "next")
}

func TestLandVerificationAndTransfer(t *testing.T) {
	h := newHarness(t)
	h.mustExec("auth", "register", "-name", "Bob", "-email", "bob@example.com", "-password", "secret")
	h.mustExec("auth", "register", "-name", "Alice", "-email", "alice@example.com", "-password", "secret")

	landID := h.registerLand("River Farm")
	assert.Contains(t, h.mustExec("land", "list"), "River Farm")
	assert.Contains(t, h.mustExec("land", "show", landID), "pending")

	code, _, errOut := h.exec("transfer", "send", "-land", landID, "-to", "bob@example.com", "-amount", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "verified")

	code, _, _ = h.exec("verify", "proof", "-land", landID)
	assert.Equal(t, 1, code)

	h.mustExec("verify", "documents", "-land", landID, "-doc", "deed.pdf", "-doc", "survey.pdf")
	h.mustExec("verify", "notary", "-land", landID, "-appointment", "2026-11-01T10:00:00Z")
	h.mustExec("verify", "proof", "-land", landID)
	out := h.mustExec("verify", "mint", "-land", landID, "-nft-name", "River Farm Deed")
	assert.Contains(t, out, "complete")

	var land *domain.Land
	for _, l := range h.snapshot().Lands {
		if l.ID == landID {
			land = l
		}
	}
	require.NotNil(t, land)
	assert.True(t, land.IsVerified())
	assert.Equal(t, []string{"deed.pdf", "survey.pdf"}, land.Documents)
	require.NotNil(t, land.CertificateID)

	out = h.mustExec("transfer", "send", "-land", landID, "-to", "bob@example.com", "-amount", "2.5", "-notes", "sale")
	assert.Contains(t, out, "bob@example.com")

	snap := h.snapshot()
	require.Len(t, snap.Transfers, 1)
	assert.Equal(t, 2.5, snap.Transfers[0].Amount)
	for _, l := range snap.Lands {
		if l.ID == landID {
			assert.Equal(t, "bob@example.com", l.OwnerEmail)
		}
	}

	assert.Contains(t, h.mustExec("transfer", "list"), "River Farm")
	assert.Contains(t, h.mustExec("dashboard"), "Transfers: 1")
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t)
	h.mustExec("auth", "register", "-name", "Carol", "-email", "carol@example.com", "-password", "secret")
	h.registerLand("Hill Plot")

	code, _, _ := h.exec("admin", "users")
	assert.Equal(t, 1, code)

	h.mustExec("auth", "login", "-email", "root@example.com", "-password", "rootpass")
	out := h.mustExec("admin", "users")
	assert.Contains(t, out, "carol@example.com")
	assert.Contains(t, out, "root@example.com")
	assert.Contains(t, h.mustExec("admin", "lands"), "Hill Plot")

	var carolID string
	for _, u := range h.snapshot().Users {
		if u.Email == "carol@example.com" {
			carolID = u.ID
		}
	}
	require.NotEmpty(t, carolID)

	out = h.mustExec("admin", "delete-user", carolID)
	assert.Contains(t, out, "1 lands removed")

	snap := h.snapshot()
	assert.Len(t, snap.Users, 1)
	assert.Empty(t, snap.Lands)
}

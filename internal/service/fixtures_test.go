package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/repository"
	"github.com/aryan0dhankhar/landledger/internal/security/auth"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store, err := repository.NewMemoryStore(context.Background(), nil, nil)
	require.NoError(t, err)
	return store
}

type fakeSessions struct {
	mu      sync.Mutex
	issued  map[string]string // token -> user id
	revoked []string
	users   []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{issued: map[string]string{}}
}

func (f *fakeSessions) Issue(_ context.Context, user *domain.User) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "tok-" + user.ID
	f.issued[token] = user.ID
	return token, nil
}

func (f *fakeSessions) Revoke(_ context.Context, token string) (*auth.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.issued[token]
	if !ok {
		return nil, nil
	}
	delete(f.issued, token)
	f.revoked = append(f.revoked, token)
	return &auth.Claims{UserID: userID}, nil
}

func (f *fakeSessions) RevokeUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return nil
}

type fakeTargets struct {
	cleared []string
}

func (f *fakeTargets) Clear(userID string) {
	f.cleared = append(f.cleared, userID)
}

func newTestAuthService(store domain.Store, sessions SessionIssuer, targets TargetClearer) *AuthService {
	svc := NewAuthService(store, sessions, targets, nil)
	svc.hashCost = bcrypt.MinCost
	svc.now = func() time.Time { return testNow }
	return svc
}

// seedUser stores an account directly and returns it
func seedUser(t *testing.T, store domain.Store, id, name, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Name: name, Email: email, Role: role, CreatedAt: testNow, UpdatedAt: testNow}
	require.NoError(t, store.Update(context.Background(), func(tx domain.Tx) error {
		return tx.CreateUser(u)
	}))
	return u
}

// seedLand stores a parcel owned by owner, verified when requested
func seedLand(t *testing.T, store domain.Store, id string, owner *domain.User, verified bool, registeredAt time.Time) *domain.Land {
	t.Helper()
	l := &domain.Land{
		ID: id, Title: "Plot " + id, Area: 100, Address: "1 Road", City: "Pune", State: "MH",
		Country: "IN", Pincode: "411001",
		OwnerID: owner.ID, OwnerName: owner.Name, OwnerEmail: owner.Email,
		Status: domain.LandPending, VerificationStep: domain.FirstVerificationStep,
		Documents: []string{}, RegisteredAt: registeredAt, UpdatedAt: registeredAt,
	}
	if verified {
		cert := "nft_" + id
		l.Status = domain.LandVerified
		l.VerificationStep = domain.VerificationComplete
		l.CertificateID = &cert
	}
	require.NoError(t, store.Update(context.Background(), func(tx domain.Tx) error {
		return tx.CreateLand(l)
	}))
	return l
}

func loadLand(t *testing.T, store domain.Store, id string) *domain.Land {
	t.Helper()
	var land *domain.Land
	require.NoError(t, store.View(context.Background(), func(tx domain.Tx) error {
		l, err := tx.GetLand(id)
		land = l
		return err
	}))
	return land
}

func loadTransfers(t *testing.T, store domain.Store) []*domain.Transfer {
	t.Helper()
	var transfers []*domain.Transfer
	require.NoError(t, store.View(context.Background(), func(tx domain.Tx) error {
		list, err := tx.ListTransfers()
		transfers = list
		return err
	}))
	return transfers
}

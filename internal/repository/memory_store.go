package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

// Snapshot is the serialisable form of the whole record store
type Snapshot struct {
	Users     []*domain.User     `json:"users"`
	Lands     []*domain.Land     `json:"lands"`
	Transfers []*domain.Transfer `json:"transfers"`
}

// Persister loads and saves store snapshots. Load returns (nil, nil) when nothing
// has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// MemoryStore implements domain.Store in memory. Updates run against a copy of the
// state which replaces the live state only after the callback and the persister
// both succeed.
type MemoryStore struct {
	mu        sync.RWMutex
	state     *Snapshot
	persister Persister
	logger    *slog.Logger
}

// NewMemoryStore creates a store, restoring state from the persister when given
func NewMemoryStore(ctx context.Context, persister Persister, logger *slog.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &MemoryStore{
		state:     &Snapshot{},
		persister: persister,
		logger:    logger,
	}

	if persister != nil {
		snap, err := persister.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}
		if snap != nil {
			s.state = snap.clone()
			logger.Info("record store restored",
				slog.Int("users", len(snap.Users)),
				slog.Int("lands", len(snap.Lands)),
				slog.Int("transfers", len(snap.Transfers)),
			)
		}
	}

	return s, nil
}

// View runs fn against the current state
func (s *MemoryStore) View(_ context.Context, fn func(tx domain.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{state: s.state, readOnly: true})
}

// Update runs fn against a copy of the state and commits it atomically
func (s *MemoryStore) Update(ctx context.Context, fn func(tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}

	if s.persister != nil {
		if err := s.persister.Save(ctx, tx.state); err != nil {
			s.logger.Error("failed to persist snapshot", slog.String("error", err.Error()))
			return fmt.Errorf("failed to persist snapshot: %w", err)
		}
	}

	s.state = tx.state
	return nil
}

// Export returns a copy of the current state
func (s *MemoryStore) Export() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		Users:     make([]*domain.User, 0, len(s.Users)),
		Lands:     make([]*domain.Land, 0, len(s.Lands)),
		Transfers: make([]*domain.Transfer, 0, len(s.Transfers)),
	}
	for _, u := range s.Users {
		c := *u
		out.Users = append(out.Users, &c)
	}
	for _, l := range s.Lands {
		c := l.Clone()
		out.Lands = append(out.Lands, &c)
	}
	for _, t := range s.Transfers {
		c := *t
		out.Transfers = append(out.Transfers, &c)
	}
	return out
}

type memTx struct {
	state    *Snapshot
	readOnly bool
	dirty    bool
}

func (tx *memTx) write() error {
	if tx.readOnly {
		return fmt.Errorf("write in read-only transaction")
	}
	tx.dirty = true
	return nil
}

func (tx *memTx) userIndex(id string) int {
	for i, u := range tx.state.Users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (tx *memTx) landIndex(id string) int {
	for i, l := range tx.state.Lands {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (tx *memTx) GetUser(id string) (*domain.User, error) {
	i := tx.userIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrRecordNotFound)
	}
	u := *tx.state.Users[i]
	return &u, nil
}

func (tx *memTx) GetUserByEmail(email string) (*domain.User, error) {
	for _, u := range tx.state.Users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, domain.ErrRecordNotFound)
}

func (tx *memTx) ListUsers() ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(tx.state.Users))
	for _, u := range tx.state.Users {
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

func (tx *memTx) CreateUser(user *domain.User) error {
	if err := tx.write(); err != nil {
		return err
	}
	if tx.userIndex(user.ID) >= 0 {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	if _, err := tx.GetUserByEmail(user.Email); err == nil {
		return domain.ErrDuplicateEmail
	}
	c := *user
	tx.state.Users = append(tx.state.Users, &c)
	return nil
}

func (tx *memTx) UpdateUser(user *domain.User) error {
	if err := tx.write(); err != nil {
		return err
	}
	i := tx.userIndex(user.ID)
	if i < 0 {
		return fmt.Errorf("user %s: %w", user.ID, domain.ErrRecordNotFound)
	}
	if other, err := tx.GetUserByEmail(user.Email); err == nil && other.ID != user.ID {
		return domain.ErrDuplicateEmail
	}
	c := *user
	tx.state.Users[i] = &c
	return nil
}

func (tx *memTx) DeleteUser(id string) error {
	if err := tx.write(); err != nil {
		return err
	}
	i := tx.userIndex(id)
	if i < 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrRecordNotFound)
	}
	tx.state.Users = append(tx.state.Users[:i], tx.state.Users[i+1:]...)
	return nil
}

func (tx *memTx) GetLand(id string) (*domain.Land, error) {
	i := tx.landIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("land %s: %w", id, domain.ErrRecordNotFound)
	}
	l := tx.state.Lands[i].Clone()
	return &l, nil
}

func (tx *memTx) ListLands() ([]*domain.Land, error) {
	out := make([]*domain.Land, 0, len(tx.state.Lands))
	for _, l := range tx.state.Lands {
		c := l.Clone()
		out = append(out, &c)
	}
	return out, nil
}

func (tx *memTx) ListLandsByOwner(ownerID string) ([]*domain.Land, error) {
	var out []*domain.Land
	for _, l := range tx.state.Lands {
		if l.OwnerID == ownerID {
			c := l.Clone()
			out = append(out, &c)
		}
	}
	return out, nil
}

func (tx *memTx) CreateLand(land *domain.Land) error {
	if err := tx.write(); err != nil {
		return err
	}
	if err := land.Validate(); err != nil {
		return err
	}
	if tx.landIndex(land.ID) >= 0 {
		return fmt.Errorf("land %s already exists", land.ID)
	}
	land.Version = 1
	c := land.Clone()
	tx.state.Lands = append(tx.state.Lands, &c)
	return nil
}

func (tx *memTx) UpdateLand(land *domain.Land) error {
	if err := tx.write(); err != nil {
		return err
	}
	if err := land.Validate(); err != nil {
		return err
	}
	i := tx.landIndex(land.ID)
	if i < 0 {
		return fmt.Errorf("land %s: %w", land.ID, domain.ErrRecordNotFound)
	}
	if tx.state.Lands[i].Version != land.Version {
		return fmt.Errorf("land %s at version %d: %w", land.ID, land.Version, domain.ErrStaleWrite)
	}
	land.Version++
	c := land.Clone()
	tx.state.Lands[i] = &c
	return nil
}

func (tx *memTx) DeleteLandsByOwner(ownerID string) (int, error) {
	if err := tx.write(); err != nil {
		return 0, err
	}
	kept := tx.state.Lands[:0]
	removed := 0
	for _, l := range tx.state.Lands {
		if l.OwnerID == ownerID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	tx.state.Lands = kept
	return removed, nil
}

func (tx *memTx) ListTransfers() ([]*domain.Transfer, error) {
	out := make([]*domain.Transfer, 0, len(tx.state.Transfers))
	for _, t := range tx.state.Transfers {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (tx *memTx) CreateTransfer(transfer *domain.Transfer) error {
	if err := tx.write(); err != nil {
		return err
	}
	c := *transfer
	tx.state.Transfers = append(tx.state.Transfers, &c)
	return nil
}

func (tx *memTx) UpdateTransfer(transfer *domain.Transfer) error {
	if err := tx.write(); err != nil {
		return err
	}
	for i, t := range tx.state.Transfers {
		if t.ID == transfer.ID {
			c := *transfer
			tx.state.Transfers[i] = &c
			return nil
		}
	}
	return fmt.Errorf("transfer %s: %w", transfer.ID, domain.ErrRecordNotFound)
}

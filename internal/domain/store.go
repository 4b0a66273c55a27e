package domain

import (
	"context"
	"errors"
)

// Store-level facts. Stores return these (optionally wrapped) and services translate
// them into user-facing errors.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrStaleWrite     = errors.New("record was modified concurrently")
	ErrDuplicateEmail = errors.New("email already in use")
)

// Tx is a unit of work over the record store. Getters return copies; writes become
// visible to other callers only when the surrounding Update returns nil.
type Tx interface {
	GetUser(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	ListUsers() ([]*User, error)
	CreateUser(user *User) error
	UpdateUser(user *User) error
	DeleteUser(id string) error

	GetLand(id string) (*Land, error)
	ListLands() ([]*Land, error)
	ListLandsByOwner(ownerID string) ([]*Land, error)
	CreateLand(land *Land) error
	// UpdateLand fails with ErrStaleWrite unless land.Version matches the stored
	// version; on success land.Version is advanced.
	UpdateLand(land *Land) error
	DeleteLandsByOwner(ownerID string) (int, error)

	ListTransfers() ([]*Transfer, error)
	CreateTransfer(transfer *Transfer) error
	UpdateTransfer(transfer *Transfer) error
}

// Store runs units of work against users, lands and transfers
type Store interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
}

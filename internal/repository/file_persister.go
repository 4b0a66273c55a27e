package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aryan0dhankhar/landledger/internal/domain"
)

// fileDocument is the on-disk layout: three entity arrays plus the active session
type fileDocument struct {
	Users       []*domain.User     `json:"users"`
	Lands       []*domain.Land     `json:"lands"`
	Transfers   []*domain.Transfer `json:"transfers"`
	CurrentUser *domain.User       `json:"currentUser"`
}

// FilePersister keeps the record store in a single JSON document on disk
type FilePersister struct {
	mu   sync.Mutex
	path string
}

// NewFilePersister creates a persister writing to path, creating parent directories
func NewFilePersister(path string) (*FilePersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FilePersister{path: path}, nil
}

// Load reads the entity arrays
func (p *FilePersister) Load(_ context.Context) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.read()
	if err != nil || doc == nil {
		return nil, err
	}
	return &Snapshot{Users: doc.Users, Lands: doc.Lands, Transfers: doc.Transfers}, nil
}

// Save replaces the entity arrays, keeping the session entry
func (p *FilePersister) Save(_ context.Context, snapshot *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.read()
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &fileDocument{}
	}
	doc.Users = snapshot.Users
	doc.Lands = snapshot.Lands
	doc.Transfers = snapshot.Transfers
	return p.write(doc)
}

// CurrentUser returns the active session user, or nil when logged out
func (p *FilePersister) CurrentUser() (*domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.read()
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.CurrentUser, nil
}

// SetCurrentUser stores the active session user; nil clears it
func (p *FilePersister) SetCurrentUser(user *domain.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.read()
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &fileDocument{}
	}
	if user != nil {
		public := user.Public()
		user = &public
	}
	doc.CurrentUser = user
	return p.write(doc)
}

func (p *FilePersister) read() (*fileDocument, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode store file: %w", err)
	}
	return &doc, nil
}

func (p *FilePersister) write(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

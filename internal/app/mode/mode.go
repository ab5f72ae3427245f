// Package mode tracks which label each user currently stamps onto photos.
package mode

import (
	"context"
	"errors"
	"fmt"

	"labelbot/internal/app/kv"
	"labelbot/internal/app/label"
	"labelbot/internal/pkg/logx"
)

// ErrNotSet is returned by Get for a user that never had a mode.
var ErrNotSet = errors.New("mode: not set")

// Store reads and writes user modes. Keys are raw platform user ids and values
// the two-digit label index, the layout existing Redis data already uses.
type Store struct {
	kv kv.Store
}

// NewStore returns a Store on top of the given key-value backend.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// Get returns the user's label index or ErrNotSet.
func (s *Store) Get(ctx context.Context, userID string) (label.Index, error) {
	raw, err := s.kv.Get(ctx, userID)
	if errors.Is(err, kv.ErrNotFound) {
		return 0, ErrNotSet
	}
	if err != nil {
		return 0, fmt.Errorf("get mode: %w", err)
	}

	idx, err := label.ParseIndex(raw)
	if err != nil {
		return 0, fmt.Errorf("get mode: stored value: %w", err)
	}
	return idx, nil
}

// Set overwrites the user's mode.
func (s *Store) Set(ctx context.Context, userID string, idx label.Index) error {
	if err := s.kv.Set(ctx, userID, idx.String()); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

// Init assigns label.DefaultIndex if the user has no mode yet and reports
// whether it did. An existing choice is kept, so re-following does not reset it.
func (s *Store) Init(ctx context.Context, userID string) (bool, error) {
	created, err := s.kv.SetNX(ctx, userID, label.DefaultIndex.String())
	if err != nil {
		return false, fmt.Errorf("init mode: %w", err)
	}
	return created, nil
}

// GetOrInit returns the user's mode, initializing it to the default when unset.
// Users who followed before modes were persisted, or whose follow event was lost,
// land here.
func (s *Store) GetOrInit(ctx context.Context, userID string) (label.Index, error) {
	idx, err := s.Get(ctx, userID)
	if !errors.Is(err, ErrNotSet) {
		return idx, err
	}

	logx.Warn("Mode missing for user, initializing default", "user", logx.UserTag(userID))

	if _, err := s.Init(ctx, userID); err != nil {
		return 0, err
	}
	// Re-read: a concurrent Set may have won the race.
	return s.Get(ctx, userID)
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ikkim/storefront-sync/pkg/logger"
)

// Scope selects the lifetime of a stored value.
type Scope int

const (
	// ScopePersistent values are shared by every tab of the origin and survive restarts.
	ScopePersistent Scope = iota
	// ScopeSession values live only as long as the tab.
	ScopeSession
)

func (s Scope) String() string {
	if s == ScopeSession {
		return "session"
	}
	return "persistent"
}

// Backend is a raw key-value store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// LocalStore routes keys to the session or persistent backend and handles JSON encoding.
// Missing, unreadable and malformed values are all reported as absent.
type LocalStore struct {
	persistent Backend
	session    Backend
	log        *logger.Logger
}

func NewLocalStore(persistent, session Backend, log *logger.Logger) *LocalStore {
	if log == nil {
		log = logger.Nop()
	}
	return &LocalStore{
		persistent: persistent,
		session:    session,
		log:        log.Component("storage"),
	}
}

func (s *LocalStore) backend(scope Scope) Backend {
	if scope == ScopeSession {
		return s.session
	}
	return s.persistent
}

// Read decodes the value under key into dst and reports whether it was present and valid.
func (s *LocalStore) Read(ctx context.Context, key string, scope Scope, dst interface{}) bool {
	raw, ok, err := s.backend(scope).Get(ctx, key)
	if err != nil {
		s.log.Warn("Storage read failed, treating as empty", map[string]interface{}{
			"key":   key,
			"scope": scope.String(),
			"error": err.Error(),
		})
		return false
	}
	if !ok || len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn("Malformed stored value, treating as empty", map[string]interface{}{
			"key":   key,
			"scope": scope.String(),
			"error": err.Error(),
		})
		return false
	}
	return true
}

// Write encodes value as JSON and stores it under key. Last write wins.
func (s *LocalStore) Write(ctx context.Context, key string, scope Scope, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend(scope).Set(ctx, key, raw); err != nil {
		s.log.Warn("Storage write failed", map[string]interface{}{
			"key":   key,
			"scope": scope.String(),
			"error": err.Error(),
		})
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Remove(ctx context.Context, key string, scope Scope) error {
	if err := s.backend(scope).Delete(ctx, key); err != nil {
		s.log.Warn("Storage remove failed", map[string]interface{}{
			"key":   key,
			"scope": scope.String(),
			"error": err.Error(),
		})
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

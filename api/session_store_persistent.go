package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/util"
	"github.com/jmcleod/tablehand/storage"
)

const (
	sessionNamespace      = "tablehand_refresh_sessions"
	sessionKeyNamespace   = "tablehand_refresh_session_key"
	sessionKeySlot        = "current"
	sessionAADPrefix      = "refresh_session:"
	sessionKeyWrappingAAD = "tablehand:refresh_session_key:v1"
	cleanupInterval       = 5 * time.Minute
)

// PersistentSessionStore keeps refresh sessions in a storage.Repository,
// sealed with AES-256-GCM, so they survive a server restart. Records are
// stored under the SHA-256 of the token; the token itself is never
// written.
//
// The record key is sealed with an externally provided wrapping key before
// being stored.
type PersistentSessionStore struct {
	mu       sync.Mutex
	repo     storage.Repository
	key      []byte
	clock    clock.Clock
	logger   *slog.Logger
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ SessionStore = (*PersistentSessionStore)(nil)

// NewPersistentSessionStore creates a session store backed by repo. The
// 32-byte wrappingKey seals the record key at rest and is never stored.
func NewPersistentSessionStore(repo storage.Repository, wrappingKey []byte, clk clock.Clock, logger *slog.Logger) (*PersistentSessionStore, error) {
	if len(wrappingKey) != util.KeySize {
		return nil, fmt.Errorf("wrapping key must be exactly %d bytes, got %d", util.KeySize, len(wrappingKey))
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	key, err := loadOrCreateSessionKey(repo, wrappingKey)
	if err != nil {
		return nil, err
	}
	s := &PersistentSessionStore{
		repo:   repo,
		key:    key,
		clock:  clk,
		logger: logger.With("component", "refresh_sessions"),
		stopCh: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s, nil
}

// Close stops the background cleanup goroutine and wipes key material.
func (s *PersistentSessionStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.mu.Lock()
		util.WipeBytes(s.key)
		s.mu.Unlock()
	})
}

func slotFor(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *PersistentSessionStore) Get(token string) (RefreshSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(slotFor(token))
}

func (s *PersistentSessionStore) loadLocked(slot string) (RefreshSession, bool) {
	env, err := s.repo.Get(sessionNamespace, slot)
	if err != nil {
		return RefreshSession{}, false
	}
	data, err := storage.OpenRecord(s.key, env, []byte(sessionAADPrefix+slot))
	if err != nil {
		_ = s.repo.Delete(sessionNamespace, slot)
		return RefreshSession{}, false
	}
	defer util.WipeBytes(data)
	var session RefreshSession
	if err := json.Unmarshal(data, &session); err != nil {
		_ = s.repo.Delete(sessionNamespace, slot)
		return RefreshSession{}, false
	}
	if s.clock.Now().After(session.ExpiresAt) {
		_ = s.repo.Delete(sessionNamespace, slot)
		return RefreshSession{}, false
	}
	return session, true
}

func (s *PersistentSessionStore) Put(token string, session RefreshSession) {
	data, err := json.Marshal(session)
	if err != nil {
		return
	}
	slot := slotFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := storage.SealRecord(s.key, data, []byte(sessionAADPrefix+slot))
	if err != nil {
		s.logger.Error("sealing refresh session", "error", err)
		return
	}
	if err := s.repo.Put(sessionNamespace, slot, env); err != nil {
		s.logger.Error("storing refresh session", "error", err)
	}
}

func (s *PersistentSessionStore) Take(token string) (RefreshSession, bool) {
	slot := slotFor(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.loadLocked(slot)
	if ok {
		_ = s.repo.Delete(sessionNamespace, slot)
	}
	return session, ok
}

func (s *PersistentSessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.repo.Delete(sessionNamespace, slotFor(token))
}

func (s *PersistentSessionStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired drops expired and unreadable records.
func (s *PersistentSessionStore) sweepExpired() {
	slots, err := s.repo.List(sessionNamespace)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.loadLocked(slot)
	}
}

// loadOrCreateSessionKey unseals the record key with wrappingKey, creating
// it on first use. A key sealed under a different wrapping key is replaced;
// the sessions it protected become unreadable and are swept.
func loadOrCreateSessionKey(repo storage.Repository, wrappingKey []byte) ([]byte, error) {
	aad := []byte(sessionKeyWrappingAAD)

	env, err := repo.Get(sessionKeyNamespace, sessionKeySlot)
	if err == nil {
		key, openErr := storage.OpenRecord(wrappingKey, env, aad)
		if openErr == nil && len(key) == util.KeySize {
			return key, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading refresh session key: %w", err)
	}

	key, err := util.RandomBytes(util.KeySize)
	if err != nil {
		return nil, err
	}
	sealed, err := storage.SealRecord(wrappingKey, key, aad)
	if err != nil {
		util.WipeBytes(key)
		return nil, fmt.Errorf("sealing refresh session key: %w", err)
	}
	if err := repo.Put(sessionKeyNamespace, sessionKeySlot, sealed); err != nil {
		util.WipeBytes(key)
		return nil, fmt.Errorf("storing refresh session key: %w", err)
	}
	return key, nil
}

// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"sort"
	"sync"

	"github.com/jmcleod/tablehand/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for tests and for clients that must not touch disk.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.Envelope
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.Envelope)}
}

func cloneEnvelope(env *storage.Envelope) *storage.Envelope {
	if env == nil {
		return nil
	}
	return &storage.Envelope{
		Ver:        env.Ver,
		Scheme:     env.Scheme,
		Nonce:      append([]byte(nil), env.Nonce...),
		Ciphertext: append([]byte(nil), env.Ciphertext...),
	}
}

func (r *Repository) Put(namespace, slot string, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[namespace]; !ok {
		r.data[namespace] = make(map[string]*storage.Envelope)
	}
	r.data[namespace][slot] = cloneEnvelope(envelope)
	return nil
}

func (r *Repository) Get(namespace, slot string) (*storage.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	env, ok := r.data[namespace][slot]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneEnvelope(env), nil
}

func (r *Repository) Delete(namespace, slot string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[namespace][slot]; !ok {
		return storage.ErrNotFound
	}
	delete(r.data[namespace], slot)
	return nil
}

func (r *Repository) List(namespace string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	slots := make([]string, 0, len(r.data[namespace]))
	for slot := range r.data[namespace] {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots, nil
}

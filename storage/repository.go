// Package storage provides durable client-side storage for the session layer:
// a small keyed repository of sealed envelopes and, on top of it, the named
// slots that survive a process restart.
package storage

import "errors"

// ErrNotFound is returned when a slot has never been written or was deleted.
var ErrNotFound = errors.New("slot not found")

// Repository is a namespaced key-value store of envelopes. Implementations
// must be safe for concurrent use and must not retain the caller's envelope.
type Repository interface {
	Put(namespace, slot string, envelope *Envelope) error
	Get(namespace, slot string) (*Envelope, error)
	Delete(namespace, slot string) error
	List(namespace string) ([]string, error)
}

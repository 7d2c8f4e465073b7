package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jmcleod/tablehand/internal/util"
)

const (
	// Namespace groups every slot owned by the client layer.
	Namespace = "tablehand"

	// SlotAccessCredential holds the bearer token restored on restart.
	SlotAccessCredential = "access_credential"
	// SlotReturnPath holds the navigation location recorded at logout and
	// consumed by the next successful login.
	SlotReturnPath = "return_path"

	slotSalt = "kdf_salt"
	saltLen  = 16
)

// Slots exposes the two durable slots the session layer relies on. Both are
// sealed with keys derived from a single master key, each bound to its slot
// name so envelopes cannot be swapped between slots.
type Slots struct {
	repo Repository

	mu      sync.Mutex
	credKey []byte
	pathKey []byte
	closed  bool
}

// NewSlots derives the per-slot keys from a 32-byte master key. The master
// key is not retained.
func NewSlots(repo Repository, masterKey []byte) (*Slots, error) {
	credKey, err := util.SubKey(masterKey, SlotAccessCredential)
	if err != nil {
		return nil, fmt.Errorf("deriving credential slot key: %w", err)
	}
	pathKey, err := util.SubKey(masterKey, SlotReturnPath)
	if err != nil {
		util.WipeBytes(credKey)
		return nil, fmt.Errorf("deriving return path slot key: %w", err)
	}
	return &Slots{repo: repo, credKey: credKey, pathKey: pathKey}, nil
}

// OpenSlots derives the master key from a passphrase using Argon2id and a
// salt persisted in the repository, creating the salt on first use.
func OpenSlots(repo Repository, passphrase string, params util.Argon2idParams) (*Slots, error) {
	salt, err := loadOrCreateSalt(repo)
	if err != nil {
		return nil, err
	}
	master, err := util.PassphraseKey(passphrase, salt, params)
	if err != nil {
		return nil, fmt.Errorf("deriving storage key: %w", err)
	}
	defer util.WipeBytes(master)
	return NewSlots(repo, master)
}

func loadOrCreateSalt(repo Repository) ([]byte, error) {
	env, err := repo.Get(Namespace, slotSalt)
	if err == nil {
		salt, err := OpenRaw(env)
		if err != nil {
			return nil, fmt.Errorf("reading storage salt: %w", err)
		}
		if len(salt) == saltLen {
			return salt, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("reading storage salt: %w", err)
	}

	salt, err := util.RandomBytes(saltLen)
	if err != nil {
		return nil, err
	}
	if err := repo.Put(Namespace, slotSalt, RawRecord(salt)); err != nil {
		return nil, fmt.Errorf("persisting storage salt: %w", err)
	}
	return salt, nil
}

// Close wipes the derived key material. Further slot operations fail.
func (s *Slots) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	util.WipeBytes(s.credKey)
	util.WipeBytes(s.pathKey)
}

func (s *Slots) put(slot string, key []byte, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSlotsClosed
	}
	env, err := SealRecord(key, []byte(value), []byte("slot:"+slot))
	if err != nil {
		return fmt.Errorf("sealing %s: %w", slot, err)
	}
	return s.repo.Put(Namespace, slot, env)
}

func (s *Slots) get(slot string, key []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errSlotsClosed
	}
	env, err := s.repo.Get(Namespace, slot)
	if err != nil {
		return "", err
	}
	data, err := OpenRecord(key, env, []byte("slot:"+slot))
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", slot, err)
	}
	defer util.WipeBytes(data)
	return string(data), nil
}

func (s *Slots) clear(slot string) error {
	err := s.repo.Delete(Namespace, slot)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

var errSlotsClosed = errors.New("storage slots closed")

// SaveCredential persists the access credential.
func (s *Slots) SaveCredential(token string) error {
	return s.put(SlotAccessCredential, s.credKey, token)
}

// LoadCredential returns the persisted access credential or ErrNotFound.
func (s *Slots) LoadCredential() (string, error) {
	return s.get(SlotAccessCredential, s.credKey)
}

// ClearCredential removes the access credential. Clearing an empty slot is
// not an error.
func (s *Slots) ClearCredential() error {
	return s.clear(SlotAccessCredential)
}

// SaveReturnPath records the location to restore after the next login.
func (s *Slots) SaveReturnPath(path string) error {
	if path == "" {
		return s.clear(SlotReturnPath)
	}
	return s.put(SlotReturnPath, s.pathKey, path)
}

// TakeReturnPath returns and clears the recorded location. An empty slot
// yields "" without error.
func (s *Slots) TakeReturnPath() (string, error) {
	path, err := s.get(SlotReturnPath, s.pathKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return path, s.clear(SlotReturnPath)
}

package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"salestore/storage"
)

// KV is the keyed record access surface consumed by the native engines.
// Values are RLP encoded; callers pass storable record types.
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Manager wraps a storage backend with RLP record encoding and
// transaction support. Reads outside a transaction hit the backend directly.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager constructs a manager bound to the supplied backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the record stored under key into out, reporting whether the
// key exists.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("state: manager not initialised")
	}
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// KVDelete removes the record stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not initialised")
	}
	return m.db.Delete(key)
}

// Begin opens a transaction. Writes are buffered in an overlay and reach the
// backend only on Commit; Abort discards them. Transactions serialise against
// each other so every operation observes state as of its start.
func (m *Manager) Begin() *Txn {
	m.mu.Lock()
	return &Txn{
		mgr:     m,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// Txn is a buffered view over the manager's backend. It is not safe for
// concurrent use.
type Txn struct {
	mgr     *Manager
	writes  map[string][]byte
	deletes map[string]struct{}
	done    bool
}

var errTxnClosed = errors.New("state: transaction already closed")

// KVGet reads through the overlay before falling back to the backend.
func (t *Txn) KVGet(key []byte, out interface{}) (bool, error) {
	if t == nil || t.done {
		return false, errTxnClosed
	}
	if _, gone := t.deletes[string(key)]; gone {
		return false, nil
	}
	if raw, ok := t.writes[string(key)]; ok {
		if err := rlp.DecodeBytes(raw, out); err != nil {
			return false, fmt.Errorf("state: decode %q: %w", key, err)
		}
		return true, nil
	}
	return t.mgr.KVGet(key, out)
}

// KVPut buffers the encoded record in the overlay.
func (t *Txn) KVPut(key []byte, value interface{}) error {
	if t == nil || t.done {
		return errTxnClosed
	}
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	delete(t.deletes, string(key))
	t.writes[string(key)] = raw
	return nil
}

// KVDelete marks the key as removed within the overlay.
func (t *Txn) KVDelete(key []byte) error {
	if t == nil || t.done {
		return errTxnClosed
	}
	delete(t.writes, string(key))
	t.deletes[string(key)] = struct{}{}
	return nil
}

// Commit flushes the overlay to the backend. The flush is sequential; a
// write failure mid-flush leaves the backend partially updated, which the
// chosen backends only exhibit on unrecoverable I/O errors.
func (t *Txn) Commit() error {
	if t == nil || t.done {
		return errTxnClosed
	}
	defer t.close()
	for key := range t.deletes {
		if err := t.mgr.db.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, raw := range t.writes {
		if err := t.mgr.db.Put([]byte(key), raw); err != nil {
			return err
		}
	}
	return nil
}

// Abort discards all buffered writes.
func (t *Txn) Abort() {
	if t == nil || t.done {
		return
	}
	t.close()
}

func (t *Txn) close() {
	t.done = true
	t.writes = nil
	t.deletes = nil
	t.mgr.mu.Unlock()
}

package domain

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// KeyRing maps canary ids to configured keys for the lifetime of the process.
//
// Exactly one id is active: the canary bound to the key marked active in
// configuration. Every other bound id is known and inactive and is the
// rotation work list. Canary ids no configured key could open are unknown.
//
// A KeyRing is safe for concurrent use, Close included. After Close every
// lookup fails with ErrUnknownKey.
type KeyRing struct {
	keys sync.Map

	mu       sync.RWMutex
	activeID uuid.UUID
	inactive []uuid.UUID
	unknown  []uuid.UUID
}

// NewKeyRing builds a ring from canary bindings. The active id must be bound
// to a key marked active.
func NewKeyRing(activeID uuid.UUID, bindings map[uuid.UUID]*EncryptionKey, unknown []uuid.UUID) (*KeyRing, error) {
	key, ok := bindings[activeID]
	if !ok || key == nil || !key.Active {
		return nil, ErrActiveKeyUnbound
	}

	r := &KeyRing{activeID: activeID, unknown: slices.Clone(unknown)}
	for id, k := range bindings {
		r.keys.Store(id, k)
		if id != activeID {
			r.inactive = append(r.inactive, id)
		}
	}
	slices.SortFunc(r.inactive, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	return r, nil
}

// ActiveID returns the id new encryptions are tagged with.
func (r *KeyRing) ActiveID() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// Active returns the active key.
func (r *KeyRing) Active() (*EncryptionKey, error) {
	return r.Resolve(r.ActiveID())
}

// Resolve returns the key bound to id.
func (r *KeyRing) Resolve(id uuid.UUID) (*EncryptionKey, error) {
	if k, ok := r.keys.Load(id); ok {
		return k.(*EncryptionKey), nil
	}
	return nil, ErrUnknownKey
}

// IsKnownAndInactive reports whether id resolves to a key but is not the active id.
func (r *KeyRing) IsKnownAndInactive(id uuid.UUID) bool {
	if id == r.ActiveID() {
		return false
	}
	_, ok := r.keys.Load(id)
	return ok
}

// KnownInactiveIDs returns the ids whose fields rotation should migrate.
func (r *KeyRing) KnownInactiveIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.inactive)
}

// UnknownIDs returns canary ids that no configured key could open.
func (r *KeyRing) UnknownIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.unknown)
}

// Close drops every key's material.
func (r *KeyRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.keys.Range(func(_, v any) bool {
		v.(*EncryptionKey).Close()
		return true
	})
	r.keys.Clear()
	r.activeID = uuid.Nil
	r.inactive = nil
}

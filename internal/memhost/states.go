package memhost

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/coocood/freecache"
)

// DefaultStateCacheBytes sizes the state store when no size is configured.
const DefaultStateCacheBytes = 64 << 20

const noExpiry = 0

// StateStore keeps the last committed value of every sequence state. Entries
// are evicted when the store fills up; a single entry must stay below
// 1/1024 of the store size.
type StateStore struct {
	cache      *freecache.Cache
	expirySecs int
}

// NewStateStore returns a store of sizeBytes. A non-positive expiry keeps
// entries until they are evicted.
func NewStateStore(sizeBytes, expirySecs int) *StateStore {
	if sizeBytes <= 0 {
		sizeBytes = DefaultStateCacheBytes
	}
	if expirySecs < 0 {
		expirySecs = noExpiry
	}
	return &StateStore{cache: freecache.NewCache(sizeBytes), expirySecs: expirySecs}
}

func stateKey(seq uint64, name string) []byte {
	key := strconv.AppendUint(nil, seq, 10)
	key = append(key, '/')
	return append(key, name...)
}

// Put stores the framed value of state name for sequence seq.
func (s *StateStore) Put(seq uint64, name string, value []byte) error {
	if err := s.cache.Set(stateKey(seq, name), value, s.expirySecs); err != nil {
		return fmt.Errorf("store state %s for sequence %d: %w", name, seq, err)
	}
	return nil
}

// Get returns the committed value of state name for sequence seq.
func (s *StateStore) Get(seq uint64, name string) ([]byte, bool, error) {
	v, err := s.cache.Get(stateKey(seq, name))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Delete drops state name of sequence seq.
func (s *StateStore) Delete(seq uint64, name string) bool {
	return s.cache.Del(stateKey(seq, name))
}

// Entries returns the number of stored states.
func (s *StateStore) Entries() int64 { return s.cache.EntryCount() }

// HitRate returns the ratio of successful lookups.
func (s *StateStore) HitRate() float64 { return s.cache.HitRate() }

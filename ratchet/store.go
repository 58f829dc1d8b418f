package ratchet

import (
	"container/list"
	"errors"
	"fmt"
)

// MaxSkipPerChain bounds how many message keys may be buffered for a
// single receiving chain before ErrChainTooLong is returned. This is
// the specification's default of 1000.
const MaxSkipPerChain = 1000

// MaxSkipSessions bounds how many distinct prior DH public keys the
// default store retains skipped keys for. Older chains are evicted
// entirely once this limit is exceeded — an explicit choice, not a
// silent cap: see DESIGN.md.
const MaxSkipSessions = 5

// ErrNotFound is returned by Store.LoadKey when no message key is
// stored for the given (N, DH public key) pair.
var ErrNotFound = errors.New("ratchet: skipped message key not found")

// ErrChainTooLong is returned when a single receiving chain would
// need to buffer more than MaxSkipPerChain skipped message keys. It
// is fatal to the session: the caller must re-handshake.
var ErrChainTooLong = errors.New("ratchet: too many skipped messages in one chain")

// Store holds the skipped-message key cache a Session consults when a
// message arrives out of order.
type Store interface {
	// StoreKey remembers a skipped message key under the (N, pub)
	// tuple. It returns ErrChainTooLong if the chain identified by
	// pub already holds MaxSkipPerChain keys.
	StoreKey(n uint32, pub [32]byte, key [32]byte) error
	// LoadKey retrieves and removes a skipped message key. It returns
	// ErrNotFound if none is stored for (n, pub).
	LoadKey(n uint32, pub [32]byte) ([32]byte, error)
}

type skipKey struct {
	n   uint32
	pub [32]byte
}

// memoryStore is the default in-memory Store, bounded by
// MaxSkipPerChain and MaxSkipSessions.
type memoryStore struct {
	keys map[skipKey][32]byte
	// chains tracks insertion order of distinct DH public keys so the
	// oldest chain can be evicted once MaxSkipSessions is exceeded.
	chains     *list.List
	chainElems map[[32]byte]*list.Element
	chainSize  map[[32]byte]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		keys:       make(map[skipKey][32]byte),
		chains:     list.New(),
		chainElems: make(map[[32]byte]*list.Element),
		chainSize:  make(map[[32]byte]int),
	}
}

func (m *memoryStore) StoreKey(n uint32, pub [32]byte, key [32]byte) error {
	if m.chainSize[pub] >= MaxSkipPerChain {
		return fmt.Errorf("%w: chain %x at %d keys", ErrChainTooLong, pub, m.chainSize[pub])
	}
	if _, ok := m.chainElems[pub]; !ok {
		elem := m.chains.PushBack(pub)
		m.chainElems[pub] = elem
		m.evictOldChains()
	}
	m.keys[skipKey{n: n, pub: pub}] = key
	m.chainSize[pub]++
	return nil
}

func (m *memoryStore) LoadKey(n uint32, pub [32]byte) ([32]byte, error) {
	k := skipKey{n: n, pub: pub}
	key, ok := m.keys[k]
	if !ok {
		return key, ErrNotFound
	}
	delete(m.keys, k)
	m.chainSize[pub]--
	return key, nil
}

// evictOldChains drops the oldest tracked chain's keys once more than
// MaxSkipSessions distinct chains are being retained.
func (m *memoryStore) evictOldChains() {
	for m.chains.Len() > MaxSkipSessions {
		front := m.chains.Front()
		pub := front.Value.([32]byte)
		m.chains.Remove(front)
		delete(m.chainElems, pub)
		delete(m.chainSize, pub)
		for k := range m.keys {
			if k.pub == pub {
				delete(m.keys, k)
			}
		}
	}
}

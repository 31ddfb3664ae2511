// Package propstore implements the §4.12 property store: a durable
// container for dead properties, keyed by resource path. It provides an
// in-memory implementation for tests and ephemeral services, and a
// file-backed implementation (file.go) satisfying the §6.6 durability
// contract.
package propstore

import (
	"sync"

	"github.com/opendav/core/xml"
)

// Store is the property store interface of §4.12. Implementations must
// be safe for concurrent use; cross-path atomicity is not required
// (§5), but each individual call must be atomic with respect to other
// calls on the same path.
type Store interface {
	// Get returns every dead property stored for p.
	Get(p string) (map[xml.QName]xml.Property, error)
	// Set stores props for p. If removeExisting is true, any property
	// not named in props is removed first (used by a bulk replace);
	// otherwise props are merged into the existing set.
	Set(p string, props map[xml.QName]xml.Property, removeExisting bool) error
	// Remove deletes the named properties from p; absent names are
	// silently ignored.
	Remove(p string, names []xml.QName) error
	// Clear deletes every property stored for p, and for its
	// descendants too when recursive is set (used by DELETE, §4.9).
	Clear(p string, recursive bool) error
	// SameStore reports whether other is the same backing store as this
	// one — used to decide whether dead properties can be preserved
	// verbatim across a COPY/MOVE (design note §9, Open Question 1).
	SameStore(other Store) bool
}

// memStore is a process-local Store backed by a map of maps.
type memStore struct {
	mu    sync.RWMutex
	props map[string]map[xml.QName]xml.Property
}

// NewMemStore creates an in-memory Store.
func NewMemStore() Store {
	return &memStore{props: make(map[string]map[xml.QName]xml.Property)}
}

func (s *memStore) Get(p string) (map[xml.QName]xml.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[xml.QName]xml.Property, len(s.props[p]))
	for k, v := range s.props[p] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Set(p string, props map[xml.QName]xml.Property, removeExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if removeExisting || s.props[p] == nil {
		s.props[p] = make(map[xml.QName]xml.Property, len(props))
	}
	for k, v := range props {
		s.props[p][k] = v
	}
	return nil
}

func (s *memStore) Remove(p string, names []xml.QName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.props[p]
	for _, n := range names {
		delete(m, n)
	}
	return nil
}

func (s *memStore) Clear(p string, recursive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.props, p)
	if !recursive {
		return nil
	}
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	for k := range s.props {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(s.props, k)
		}
	}
	return nil
}

func (s *memStore) SameStore(other Store) bool {
	o, ok := other.(*memStore)
	return ok && o == s
}

// Package lock implements the §4.11 lock manager: exclusive and shared
// write locks with zero- or infinite-depth scope, timeouts, ownership and
// conflict detection across a resource tree. It is grounded on the
// teacher's lockmaster (lock.go), generalized to support shared locks
// and global-uniqueness tokens via google/uuid instead of math/rand.
package lock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opendav/core/path"
)

// Scope distinguishes a zero-depth lock from one that also covers every
// descendant of its root (§3.4).
type Scope int

const (
	// ScopeSelf covers only the lock root; ScopeInfinite covers the root
	// and every descendant (§3.4, §4.10).
	ScopeSelf Scope = iota
	ScopeInfinite
)

// Type is the lock's write-lock flavor (§3.4). The system has exactly
// one lock type, "write"; Exclusive vs Shared governs conflict rules.
type Type int

const (
	Exclusive Type = iota
	Shared
)

var (
	// ErrConflict is returned by Acquire when granting the lock would
	// overlap an existing incompatible lock; Conflicting names the
	// colliding lock's root.
	ErrConflict = errors.New("lock: conflicting lock")
	// ErrNotFound is returned by Refresh/Release for an unknown token.
	ErrNotFound = errors.New("lock: token not found")
	// ErrRootMismatch is returned by Refresh when the token's lock root
	// is not the path being refreshed (§4.10: "ancestor lock roots
	// cannot be refreshed this way").
	ErrRootMismatch = errors.New("lock: root mismatch")
	// ErrForbidden is returned by Release when the caller does not hold
	// the lock's principal identity.
	ErrForbidden = errors.New("lock: forbidden")

	minDuration = 10 * time.Second
	maxDuration = 30 * time.Minute
)

// ConflictError carries the lock that blocked an Acquire/LOCK attempt
// (§4.10: "423 Locked with DAV:no-conflicting-lock and the offending
// lock roots").
type ConflictError struct {
	Conflicting *Lock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lock: conflicts with existing lock at %s", e.Conflicting.Path)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Lock is an active lock (§3.4).
type Lock struct {
	Token     string
	Path      string
	Scope     Scope
	Type      Type
	Owner     string // verbatim owner XML, or empty
	Principal string
	Timeout   time.Duration
	Created   time.Time

	mu       sync.Mutex
	modified time.Time
}

// Depth returns the wire depth value (0 or infinity) for the lock's scope.
func (l *Lock) Depth() int {
	if l.Scope == ScopeInfinite {
		return -1
	}
	return 0
}

func (l *Lock) touch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modified = time.Now()
}

func (l *Lock) expired() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Timeout <= 0 {
		return false
	}
	return time.Now().After(l.modified.Add(l.Timeout))
}

// Remaining returns the time left before the lock expires, for
// rendering the Timeout/timeout element; 0 means infinite.
func (l *Lock) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Timeout <= 0 {
		return 0
	}
	left := l.Timeout - time.Since(l.modified)
	if left < 0 {
		left = 0
	}
	return left
}

// Manager is the lock manager interface of §4.11.
type Manager interface {
	Acquire(p string, scope Scope, typ Type, owner, principal string, timeout time.Duration) (*Lock, error)
	Refresh(token, p string, timeout time.Duration) (*Lock, error)
	Release(token, p, principal string) error
	FindLocksAt(p string, includeInherited bool) []*Lock
	FindLockByToken(token, p string) *Lock
	ClearLocks(p string, recursive bool)
}

// memManager is an in-process Manager backed by a map, serializing all
// acquire/refresh/release/conflict decisions behind a single mutex
// (§5: "the lock table is shared; implementations must serialize
// acquire/refresh/release").
type memManager struct {
	mu    sync.Mutex
	locks map[string]*Lock
}

// NewManager creates an in-memory lock Manager.
func NewManager() Manager {
	return &memManager{locks: make(map[string]*Lock)}
}

func clampDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 0 // 0 means infinite, left un-clamped deliberately
	}
	if d < minDuration {
		return minDuration
	}
	if d > maxDuration {
		return maxDuration
	}
	return d
}

// evictExpired must be called with mu held.
func (m *memManager) evictExpired() {
	for tok, l := range m.locks {
		if l.expired() {
			delete(m.locks, tok)
		}
	}
}

func conflicts(existing *Lock, p string, scope Scope, typ Type) bool {
	// Two shared locks never conflict, regardless of overlap.
	if existing.Type == Shared && typ == Shared {
		return false
	}
	if _, ok := path.Included(p, existing.Path, existing.Depth()); ok {
		return true
	}
	newDepth := 0
	if scope == ScopeInfinite {
		newDepth = -1
	}
	if _, ok := path.Included(existing.Path, p, newDepth); ok {
		return true
	}
	return false
}

func (m *memManager) Acquire(p string, scope Scope, typ Type, owner, principal string, timeout time.Duration) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()

	for _, l := range m.locks {
		if conflicts(l, p, scope, typ) {
			return nil, &ConflictError{Conflicting: l}
		}
	}

	l := &Lock{
		Token:     "urn:uuid:" + uuid.New().String(),
		Path:      path.Clean(p),
		Scope:     scope,
		Type:      typ,
		Owner:     owner,
		Principal: principal,
		Timeout:   clampDuration(timeout),
		Created:   time.Now(),
		modified:  time.Now(),
	}
	m.locks[l.Token] = l
	return l, nil
}

func (m *memManager) Refresh(token, p string, timeout time.Duration) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()

	l, ok := m.locks[token]
	if !ok {
		return nil, ErrNotFound
	}
	if l.Path != path.Clean(p) {
		return nil, ErrRootMismatch
	}
	l.Timeout = clampDuration(timeout)
	l.touch()
	return l, nil
}

func (m *memManager) Release(token, p, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[token]
	if !ok {
		return ErrNotFound
	}
	if _, ok := path.Included(p, l.Path, l.Depth()); !ok {
		return ErrRootMismatch
	}
	if l.Principal != principal {
		return ErrForbidden
	}
	delete(m.locks, token)
	return nil
}

func (m *memManager) FindLocksAt(p string, includeInherited bool) []*Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()

	var out []*Lock
	for _, l := range m.locks {
		if l.Path == path.Clean(p) {
			out = append(out, l)
			continue
		}
		if includeInherited {
			if _, ok := path.Included(p, l.Path, l.Depth()); ok {
				out = append(out, l)
			}
		}
	}
	return out
}

func (m *memManager) FindLockByToken(token, p string) *Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[token]
	if !ok || l.expired() {
		return nil
	}
	if _, ok := path.Included(p, l.Path, l.Depth()); !ok {
		return nil
	}
	return l
}

func (m *memManager) ClearLocks(p string, recursive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := path.Clean(p)
	for tok, l := range m.locks {
		if l.Path == cp || (recursive && path.InTree(l.Path, cp)) {
			delete(m.locks, tok)
		}
	}
}

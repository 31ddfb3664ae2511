package lock

import (
	"testing"
	"time"
)

func TestExclusiveConflictsWithExclusive(t *testing.T) {
	m := NewManager()
	if _, err := m.Acquire("/a/b.txt", ScopeSelf, Exclusive, "", "u1", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire("/a/b.txt", ScopeSelf, Exclusive, "", "u2", 0); err == nil {
		t.Fatal("expected conflict")
	}
}

func TestSharedLocksCoexist(t *testing.T) {
	m := NewManager()
	if _, err := m.Acquire("/a/b.txt", ScopeSelf, Shared, "", "u1", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire("/a/b.txt", ScopeSelf, Shared, "", "u2", 0); err != nil {
		t.Fatalf("shared locks should coexist: %v", err)
	}
}

func TestSharedConflictsWithExclusive(t *testing.T) {
	m := NewManager()
	if _, err := m.Acquire("/a/b.txt", ScopeSelf, Exclusive, "", "u1", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire("/a/b.txt", ScopeSelf, Shared, "", "u2", 0); err == nil {
		t.Fatal("expected conflict with exclusive lock")
	}
}

func TestInfiniteDepthCoversDescendant(t *testing.T) {
	m := NewManager()
	if _, err := m.Acquire("/a/", ScopeInfinite, Exclusive, "", "u1", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acquire("/a/b.txt", ScopeSelf, Exclusive, "", "u2", 0); err == nil {
		t.Fatal("expected descendant to conflict with infinite-depth lock")
	}
}

func TestRefreshRequiresExactRoot(t *testing.T) {
	m := NewManager()
	l, err := m.Acquire("/a/", ScopeInfinite, Exclusive, "", "u1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Refresh(l.Token, "/a/b.txt", time.Minute); err != ErrRootMismatch {
		t.Fatalf("expected root mismatch, got %v", err)
	}
	if _, err := m.Refresh(l.Token, "/a/", 2*time.Minute); err != nil {
		t.Fatalf("refresh on exact root should succeed: %v", err)
	}
}

func TestReleaseAndFindByToken(t *testing.T) {
	m := NewManager()
	l, err := m.Acquire("/a/b.txt", ScopeSelf, Exclusive, "", "u1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if m.FindLockByToken(l.Token, "/a/b.txt") == nil {
		t.Fatal("expected to find lock by token")
	}
	if err := m.Release(l.Token, "/a/b.txt", "u1"); err != nil {
		t.Fatal(err)
	}
	if m.FindLockByToken(l.Token, "/a/b.txt") != nil {
		t.Fatal("lock should be gone after release")
	}
}

func TestClearLocksRecursive(t *testing.T) {
	m := NewManager()
	m.Acquire("/a/b.txt", ScopeSelf, Exclusive, "", "u1", time.Minute)
	m.Acquire("/a/c.txt", ScopeSelf, Exclusive, "", "u1", time.Minute)
	m.ClearLocks("/a", true)
	if len(m.FindLocksAt("/a/b.txt", true)) != 0 {
		t.Error("expected locks to be cleared")
	}
}

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeService struct{ reusable bool }

func (f fakeService) Reusable() bool { return f.reusable }

func TestResolveMatchesPathPrefix(t *testing.T) {
	loc := NewLocation(MatchPattern{Path: "/dav/"}, func() (Service, error) {
		return fakeService{reusable: true}, nil
	})
	rt := &Router{Locations: []*Location{loc}}

	r := httptest.NewRequest(http.MethodGet, "/dav/a/b.txt", nil)
	got, rel, ok := rt.Resolve(r)
	if !ok || got != loc {
		t.Fatalf("expected match, got ok=%v loc=%v", ok, got)
	}
	if rel != "/a/b.txt" {
		t.Fatalf("rel = %q, want /a/b.txt", rel)
	}
}

func TestResolveRootEquivalence(t *testing.T) {
	loc := NewLocation(MatchPattern{Path: "/dav/"}, func() (Service, error) {
		return fakeService{reusable: true}, nil
	})
	rt := &Router{Locations: []*Location{loc}}

	for _, p := range []string{"/dav", "/dav/"} {
		r := httptest.NewRequest(http.MethodGet, p, nil)
		_, rel, ok := rt.Resolve(r)
		if !ok {
			t.Fatalf("path %q: expected match", p)
		}
		if rel != "/" {
			t.Fatalf("path %q: rel = %q, want /", p, rel)
		}
	}
}

func TestResolveNoMatch(t *testing.T) {
	loc := NewLocation(MatchPattern{Path: "/dav/"}, func() (Service, error) {
		return fakeService{reusable: true}, nil
	})
	rt := &Router{Locations: []*Location{loc}}

	r := httptest.NewRequest(http.MethodGet, "/other/x", nil)
	if _, _, ok := rt.Resolve(r); ok {
		t.Fatal("expected no match")
	}
}

func TestResolveCaseSensitivity(t *testing.T) {
	sensitive := NewLocation(MatchPattern{Path: "/Dav/"}, func() (Service, error) {
		return fakeService{}, nil
	})
	sensitive.CaseSensitive = true
	rt := &Router{Locations: []*Location{sensitive}}

	r := httptest.NewRequest(http.MethodGet, "/dav/x", nil)
	if _, _, ok := rt.Resolve(r); ok {
		t.Fatal("expected case-sensitive mismatch to not match")
	}
}

func TestServiceSharedAcrossCalls(t *testing.T) {
	calls := 0
	loc := NewLocation(MatchPattern{Path: "/dav/"}, func() (Service, error) {
		calls++
		return fakeService{reusable: true}, nil
	})
	if _, err := loc.Service(); err != nil {
		t.Fatal(err)
	}
	if _, err := loc.Service(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1", calls)
	}
}

func TestServiceResetRebuildsInstance(t *testing.T) {
	calls := 0
	loc := NewLocation(MatchPattern{Path: "/dav/"}, func() (Service, error) {
		calls++
		return fakeService{reusable: true}, nil
	})
	loc.ResetOnError = true
	if _, err := loc.Service(); err != nil {
		t.Fatal(err)
	}
	loc.ResetService()
	if _, err := loc.Service(); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("factory called %d times, want 2", calls)
	}
}

func TestServiceNotReusableRebuildsEveryCall(t *testing.T) {
	calls := 0
	loc := NewLocation(MatchPattern{Path: "/dav/"}, func() (Service, error) {
		calls++
		return fakeService{reusable: false}, nil
	})
	if _, err := loc.Service(); err != nil {
		t.Fatal(err)
	}
	if _, err := loc.Service(); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("factory called %d times, want 2", calls)
	}
}

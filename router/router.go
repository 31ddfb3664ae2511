// Package router implements the §4.1 router/dispatcher's matching half:
// mapping an incoming request to a configured Location, and holding the
// (possibly shared, possibly reset-on-error) Service instance for it.
package router

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/opendav/core/auth"
	"github.com/opendav/core/lock"
	"github.com/opendav/core/propstore"
)

// MatchPattern is a location's match criteria (§3.6). Empty fields match
// anything.
type MatchPattern struct {
	Scheme, Host, Port, Path string
}

func splitHostPort(hostport string) (string, string, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, "", nil
	}
	i := strings.LastIndex(hostport, ":")
	return hostport[:i], hostport[i+1:], nil
}

// matchPath compares a configured root against a request path,
// normalizing percent-encoding and treating "/dav" and "/dav/" as
// equivalent to a configured root of "/dav/" (§4.1).
func matchPath(root, reqPath string, caseSensitive bool) (string, bool) {
	decoded, err := url.PathUnescape(reqPath)
	if err != nil {
		decoded = reqPath
	}
	r := root
	p := decoded
	if !caseSensitive {
		r = strings.ToLower(r)
		p = strings.ToLower(p)
	}
	if !strings.HasSuffix(r, "/") {
		r += "/"
	}
	pSlash := p
	if !strings.HasSuffix(pSlash, "/") {
		pSlash += "/"
	}
	if !strings.HasPrefix(pSlash, r) {
		return "", false
	}
	rel := strings.TrimPrefix(decoded, strings.TrimSuffix(root, "/"))
	if rel == "" {
		rel = "/"
	}
	return rel, true
}

// holder is the atomically-swappable, single-writer-many-readers
// instance cell of design note §9 ("Shared mutable service instance"):
// get hands out the shared instance for a reusable Service, creating it
// on first use, and reset drops it after reset-on-error fires so that the
// next get builds a fresh one (§4.1, §5).
type holder struct {
	factory func() (Service, error)
	current atomic.Pointer[Service]
}

func newHolder(factory func() (Service, error)) *holder {
	return &holder{factory: factory}
}

func (h *holder) get() (Service, error) {
	if p := h.current.Load(); p != nil {
		return *p, nil
	}
	svc, err := h.factory()
	if err != nil {
		return nil, err
	}
	if svc.Reusable() {
		h.current.CompareAndSwap(nil, &svc)
		if p := h.current.Load(); p != nil {
			return *p, nil
		}
	}
	return svc, nil
}

// reset drops the shared instance so the next request constructs a
// fresh one (§4.1's reset-on-error rule).
func (h *holder) reset() {
	h.current.Store(nil)
}

// Service is the subset of the core's Service interface this package
// needs; it is duplicated here (rather than imported from the root
// package) to avoid an import cycle, since the root package imports
// router.
type Service interface {
	Reusable() bool
}

// Location is a configured service binding (§3.6).
type Location struct {
	Match         MatchPattern
	Locks         lock.Manager
	Props         propstore.Store
	Filters       auth.Chain
	CaseSensitive bool
	ResetOnError  bool

	holder *holder
}

// NewLocation creates a Location whose Service is built by factory on
// first use (and again after a reset-on-error).
func NewLocation(match MatchPattern, factory func() (Service, error)) *Location {
	return &Location{Match: match, holder: newHolder(factory)}
}

// Service returns the shared (or freshly constructed, for a non-reusable
// Service) instance for this location.
func (l *Location) Service() (Service, error) {
	return l.holder.get()
}

// ResetService drops the shared instance, per the reset-on-error rule.
func (l *Location) ResetService() {
	if l.ResetOnError {
		l.holder.reset()
	}
}

// Router matches requests to Locations in configuration order.
type Router struct {
	Locations []*Location
}

// Resolve finds the first Location matching r, returning the request
// path relative to that location's root.
func (rt *Router) Resolve(r *http.Request) (*Location, string, bool) {
	for _, loc := range rt.Locations {
		if rel, ok := loc.Match.matchCaseAware(r, loc.CaseSensitive); ok {
			return loc, rel, true
		}
	}
	return nil, "", false
}

func (m MatchPattern) matchCaseAware(r *http.Request, caseSensitive bool) (string, bool) {
	if m.Scheme != "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if !strings.EqualFold(scheme, m.Scheme) {
			return "", false
		}
	}
	host := r.Host
	if h, _, err := splitHostPort(host); err == nil {
		host = h
	}
	if m.Host != "" && !strings.EqualFold(host, m.Host) {
		return "", false
	}
	if m.Port != "" {
		_, port, _ := splitHostPort(r.Host)
		if port != m.Port {
			return "", false
		}
	}
	if m.Path == "" {
		return r.URL.Path, true
	}
	return matchPath(m.Path, r.URL.Path, caseSensitive)
}

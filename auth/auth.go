// Package auth implements the §4.1 authorization filter chain: an
// ordered list of filters consulted before the service itself, each of
// which may deny, allow, or abstain.
package auth

import "net/http"

// Verdict is a filter's answer for one request.
type Verdict int

const (
	// Abstain defers the decision to the next filter (or, if none
	// remain, to the service itself).
	Abstain Verdict = iota
	Allow
	Deny
)

// Decision is the result of running a Filter: a Verdict, and — for Deny
// — the specific status the dispatcher should use instead of the
// default 403 (§4.1).
type Decision struct {
	Verdict Verdict
	Status  int // meaningful only when Verdict == Deny; 0 means "use default"
}

var (
	allow  = Decision{Verdict: Allow}
	abstain = Decision{Verdict: Abstain}
)

// Filter is one link in a location's authorization chain (§4.1).
type Filter interface {
	Check(r *http.Request) Decision
}

// FilterFunc adapts a function to a Filter.
type FilterFunc func(r *http.Request) Decision

func (f FilterFunc) Check(r *http.Request) Decision { return f(r) }

// AllowAll is a Filter that always allows; useful for locations with no
// authorization requirement.
var AllowAll Filter = FilterFunc(func(r *http.Request) Decision { return allow })

// DenyAll is a Filter that always denies with the default status.
var DenyAll Filter = FilterFunc(func(r *http.Request) Decision {
	return Decision{Verdict: Deny}
})

// Chain evaluates filters in order per §4.1: "For each request the
// dispatcher calls each filter in order; a filter may return one of
// {deny with a specific status, allow, abstain}." The chain denies on
// the first Deny, allows on the first Allow, and abstains (leaving the
// decision to the service) if every filter abstains.
type Chain []Filter

func (c Chain) Check(r *http.Request) Decision {
	for _, f := range c {
		d := f.Check(r)
		switch d.Verdict {
		case Deny:
			return d
		case Allow:
			return d
		}
	}
	return abstain
}

// Copyright 2014 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cond is the precondition evaluator of §4.3: it parses the
// WebDAV If header grammar (RFC 4918 §10.4) into tagged/untagged lists of
// conditions, evaluates them against a caller-supplied environment, and
// separately evaluates the plain HTTP preconditions (If-Match,
// If-None-Match, If-Modified-Since, If-Unmodified-Since, If-Range).
package cond

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/opendav/core/etag"
)

// Env is the environment against which If conditions are evaluated.
type Env interface {
	// ETag looks up the current strong entity tag for a resource by URI.
	// A zero ETag means the resource has none (or does not exist).
	ETag(uri string) etag.ETag
	// Locked reports whether token names a lock that currently covers uri
	// and whose use the requesting principal is entitled to (§4.3).
	Locked(uri, token string) bool
}

// Condition is a single [etag] or <token> test, optionally negated.
type Condition struct {
	Not   bool
	State string // non-empty for a lock-token test
	ETag  string // non-empty for an entity-tag test
}

func parseCondition(l *lex) (Condition, error) {
	res := Condition{}
	tok := l.peek()
	if tok == Not {
		res.Not = true
		l.consume()
		tok = l.peek()
	}
	if tok == '[' {
		l.consume()
		et, err := l.consumeUntil(']')
		res.ETag = et
		if et == "" {
			return res, fmt.Errorf("cond: empty etag")
		}
		return res, err
	}
	tt, err := l.consumeIf(func(r rune) bool {
		return r != ')' && r != ' '
	})
	if len(tt) >= 2 && tt[0] == '<' {
		tt = tt[1 : len(tt)-1]
	}
	res.State = tt
	if tt == "" {
		return res, fmt.Errorf("cond: empty condition")
	}
	return res, err
}

// Eval determines the condition's truth value in env for resource r.
func (c *Condition) Eval(e Env, r string) bool {
	var res bool
	if c.State != "" {
		res = e.Locked(r, c.State)
	} else {
		cur := e.ETag(r)
		want, err := etag.Parse(c.ETag)
		if err != nil {
			// Bare tokens (no surrounding quotes) are tolerated as raw
			// tokens, matching deployed clients that omit them.
			want = etag.New(c.ETag)
		}
		res = cur.StrongEqual(want)
	}
	if c.Not {
		res = !res
	}
	return res
}

func (c *Condition) String() string {
	prefix := ""
	if c.Not {
		prefix = "Not "
	}
	if c.State != "" {
		return prefix + c.State
	}
	return prefix + "[" + c.ETag + "]"
}

// ConditionList is a conjunction ("AND") of conditions, optionally scoped
// to an explicit tagged resource.
type ConditionList struct {
	Resource   string
	Conditions []Condition
}

func parseList(l *lex) (*ConditionList, error) {
	res := &ConditionList{}
	tok := l.peek()
	if tok == '<' {
		l.consume()
		rt, err := l.consumeUntil('>')
		res.Resource = rt
		if err != nil || rt == "" {
			return res, fmt.Errorf("cond: could not parse resource: %v", err)
		}
		tok = l.peek()
	}
	if tok != '(' {
		return res, fmt.Errorf("cond: expected ( got %v", tok)
	}
	l.consume()
	tok = l.peek()
	for tok != ')' && tok != EOF {
		c, err := parseCondition(l)
		res.Conditions = append(res.Conditions, c)
		if err != nil {
			return res, fmt.Errorf("cond: could not parse condition: %v", err)
		}
		tok = l.peek()
	}
	if tok != ')' {
		return res, fmt.Errorf("cond: expected ) got %v", tok)
	}
	l.consume()
	return res, nil
}

// Eval determines the list's truth value (conjunction of its conditions),
// using rdef as the implicit resource if the list has none of its own.
func (l *ConditionList) Eval(e Env, rdef string) bool {
	r := rdef
	if l.Resource != "" {
		r = l.Resource
	}
	for _, c := range l.Conditions {
		if !c.Eval(e, r) {
			return false
		}
	}
	return true
}

func (l *ConditionList) String() string {
	prefix := ""
	if l.Resource != "" {
		prefix += "<" + l.Resource + "> "
	}
	str := make([]string, len(l.Conditions))
	for i, c := range l.Conditions {
		str[i] = c.String()
	}
	return prefix + "(" + strings.Join(str, " ") + ")"
}

// IfTag is a complete If header: a disjunction ("OR") of lists, i.e. a DNF
// formula.
type IfTag struct {
	Lists []*ConditionList
}

// Eval determines the header's truth value for the default resource rdef.
func (t *IfTag) Eval(e Env, rdef string) bool {
	for _, l := range t.Lists {
		if l.Eval(e, rdef) {
			return true
		}
	}
	return false
}

// Targets returns the set of distinct resource URIs named by tagged lists,
// plus rdef for any untagged list, with no duplicates. Used to evaluate
// "for each target resource, at least one of its lists must be true"
// (§4.3) when a header mixes tagged and untagged lists.
func (t *IfTag) Targets(rdef string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range t.Lists {
		r := rdef
		if l.Resource != "" {
			r = l.Resource
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// EvalResource determines whether at least one list scoped (explicitly or
// by default) to target evaluates true.
func (t *IfTag) EvalResource(e Env, target, rdef string) bool {
	for _, l := range t.Lists {
		r := rdef
		if l.Resource != "" {
			r = l.Resource
		}
		if r != target {
			continue
		}
		if l.Eval(e, rdef) {
			return true
		}
	}
	return false
}

// GetAllTokens gets all lock tokens named anywhere in the header,
// regardless of polarity — used for the lock-token submission check
// (§4.3), which only cares that a token was *asserted*, not how.
func (t *IfTag) GetAllTokens() []string {
	var res []string
	for _, l := range t.Lists {
		for _, c := range l.Conditions {
			if c.State != "" {
				res = append(res, c.State)
			}
		}
	}
	return res
}

// GetSingleState extracts the lone, unnegated lock-token condition from
// this header, if and only if the header consists of exactly one list with
// exactly one such condition. Used by LOCK refresh (§4.10), where the
// header must name exactly one lock to refresh.
func (t *IfTag) GetSingleState() (string, bool) {
	if len(t.Lists) != 1 {
		return "", false
	}
	l := t.Lists[0]
	if len(l.Conditions) != 1 {
		return "", false
	}
	c := l.Conditions[0]
	if c.ETag != "" || c.Not {
		return "", false
	}
	return c.State, true
}

// RewriteHosts rewrites every tagged list's resource URI to a path
// relative to host h, failing if any names a different host.
func (t *IfTag) RewriteHosts(h string) error {
	for _, l := range t.Lists {
		if l.Resource == "" {
			continue
		}
		u, err := url.Parse(l.Resource)
		if err != nil {
			return err
		}
		if u.Host != "" && u.Host != h {
			return fmt.Errorf("cond: resource %q does not match host %q", l.Resource, h)
		}
		l.Resource = u.Path
	}
	return nil
}

func (t *IfTag) String() string {
	str := make([]string, len(t.Lists))
	for i, l := range t.Lists {
		str[i] = l.String()
	}
	return strings.Join(str, " ")
}

// ParseIfTag parses the value of an HTTP If header.
func ParseIfTag(s string) (*IfTag, error) {
	res := &IfTag{}
	l := newLex(s)
	for {
		tok := l.peek()
		if tok == EOF {
			break
		}
		list, err := parseList(l)
		res.Lists = append(res.Lists, list)
		if err != nil {
			return res, fmt.Errorf("cond: could not parse list: %v", err)
		}
	}
	return res, nil
}

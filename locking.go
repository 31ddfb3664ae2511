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

package webdav

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	lockpkg "github.com/opendav/core/lock"
	"github.com/opendav/core/value"
	"github.com/opendav/core/xml"
)

func elementToString(el *etree.Element) string {
	if el == nil {
		return ""
	}
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// lockActiveElement builds the <D:activelock> element for l (§4.10,
// §4.11).
func lockActiveElement(l *lockpkg.Lock) *etree.Element {
	al := etree.NewElement("activelock")

	scope := al.CreateElement("lockscope")
	if l.Type == lockpkg.Shared {
		scope.CreateElement("shared")
	} else {
		scope.CreateElement("exclusive")
	}
	al.CreateElement("locktype").CreateElement("write")
	al.CreateElement("depth").SetText(depthHeader(l.Depth()))

	if l.Owner != "" {
		owner := etree.NewElement("owner")
		if doc := etree.NewDocument(); doc.ReadFromString(l.Owner) == nil && doc.Root() != nil {
			for _, c := range doc.Root().ChildElements() {
				owner.AddChild(c.Copy())
			}
			owner.SetText(doc.Root().Text())
		}
		al.AddChild(owner)
	}

	if rem := l.Remaining(); rem > 0 {
		al.CreateElement("timeout").SetText("Second-" + strconv.FormatInt(int64(rem.Seconds()), 10))
	} else if l.Timeout == 0 {
		al.CreateElement("timeout").SetText("Infinite")
	}

	tok := al.CreateElement("locktoken")
	tok.CreateElement("href").SetText(l.Token)

	root := al.CreateElement("lockroot")
	root.CreateElement("href").SetText(l.Path)

	return al
}

func depthHeader(d int) string {
	if d < 0 {
		return "infinity"
	}
	return strconv.Itoa(d)
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_LOCK
func (s *Dispatcher) doLock(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	if ctx.Location == nil || ctx.Location.Locks == nil {
		return s.errorHeader(ctx, w, ErrorNotYetImplemented)
	}

	in, err := readXMLBody(r)
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}
	req, err := xml.ParseLock(in)
	if err != nil {
		return s.errorHeader(ctx, w, ErrorBadLock.WithCause(err))
	}

	p := ctx.Ref.String()

	// Locking requires the parent to exist, except at the root (§4.10).
	if parent := ctx.Ref.Parent(); parent != nil {
		if _, err := parent.Lookup(); err != nil {
			return s.errorHeader(ctx, w, ErrorMissingParent)
		}
	}

	var l *lockpkg.Lock
	if req.Refresh {
		if ctx.If == nil {
			return s.errorHeader(ctx, w, ErrorBadLock)
		}
		tok, ok := ctx.If.GetSingleState()
		if !ok {
			return s.errorHeader(ctx, w, ErrorBadLock)
		}
		l, err = ctx.Location.Locks.Refresh(tok, p, ctx.Timeout)
	} else {
		// §4.10: Depth must be 0 or infinity, never 1 — a lock either
		// covers just the resource or its whole subtree.
		if ctx.Depth != 0 && ctx.Depth != -1 {
			return s.errorHeader(ctx, w, ErrorBadLock.WithCause(errors.New("lock depth must be 0 or infinity")))
		}
		scope := lockpkg.ScopeInfinite
		if ctx.Depth == 0 {
			scope = lockpkg.ScopeSelf
		}
		typ := lockpkg.Exclusive
		if req.Shared {
			typ = lockpkg.Shared
		}
		l, err = ctx.Location.Locks.Acquire(p, scope, typ, elementToString(req.Owner), ctx.Principal, ctx.Timeout)
	}
	if err != nil {
		if ce, ok := err.(*lockpkg.ConflictError); ok {
			return s.errorHeader(ctx, w, NoConflictingLock(ce.Conflicting.Path))
		}
		return s.errorHeader(ctx, w, ErrorBadLock.WithCause(err))
	}

	if !req.Refresh {
		w.Header().Set("Lock-Token", "<"+l.Token+">")
	}

	created := false
	if _, err := ctx.Ref.Lookup(); err != nil {
		_, fh, cerr := ctx.Ref.Create()
		if cerr != nil {
			ctx.Location.Locks.Release(l.Token, p, ctx.Principal)
			return s.errorHeader(ctx, w, cerr)
		}
		fh.Close()
		created = true
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)

	disc := etree.NewElement("lockdiscovery")
	disc.AddChild(lockActiveElement(l))
	xml.SendProp(xml.Property{
		Name: xml.QName{Space: xml.NSDAV, Local: "lockdiscovery"},
		Val:  value.NewXML(disc),
	}, w)
	return status
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_UNLOCK
func (s *Dispatcher) doUnlock(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	lt := r.Header.Get("Lock-Token")
	lt = strings.TrimSuffix(strings.TrimPrefix(lt, "<"), ">")
	if lt == "" {
		return s.errorHeader(ctx, w, ErrorBadLock)
	}
	if ctx.Location == nil || ctx.Location.Locks == nil {
		return s.errorHeader(ctx, w, ErrorBadLock)
	}
	if err := ctx.Location.Locks.Release(lt, ctx.Ref.String(), ctx.Principal); err != nil {
		return s.errorHeader(ctx, w, ErrorBadLock.WithCause(fmt.Errorf("unlock: %w", err)))
	}
	w.WriteHeader(http.StatusNoContent)
	return http.StatusNoContent
}

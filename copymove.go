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
	"net/http"
	"net/url"

	"github.com/opendav/core/xml"
)

// http://www.webdav.org/specs/rfc4918.html#METHOD_DELETE
func (s *Dispatcher) doDelete(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	p := ctx.Ref.String()
	if !s.checkCanWrite(ctx, p) {
		return s.errorHeader(ctx, w, LockTokenSubmitted(lockRootsAt(ctx, p)))
	}

	res, err := ctx.Ref.Lookup()
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}

	if !res.IsCollection() {
		if err := ctx.Ref.Remove(); err != nil {
			return s.errorHeader(ctx, w, err)
		}
		clearResourceState(ctx, p, false)
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	}

	errs := ctx.Ref.RemoveRecursive()
	clearResourceState(ctx, p, true)
	if len(errs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	}
	ms := xml.NewMultiStatus(r.Header.Get("User-Agent"))
	for memberPath, e := range errs {
		ms.AddStatus(memberPath, http.StatusInternalServerError, e)
	}
	ms.Send(w)
	return xml.StatusMulti
}

// clearResourceState drops dead properties and locks rooted at p,
// recursively if the removed resource was a collection (§4.9).
func clearResourceState(ctx *Context, p string, recursive bool) {
	if ctx.Location == nil {
		return
	}
	if ctx.Location.Props != nil {
		ctx.Location.Props.Clear(p, recursive)
	}
	if ctx.Location.Locks != nil {
		ctx.Location.Locks.ClearLocks(p, recursive)
	}
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_MKCOL
func (s *Dispatcher) doMkcol(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	if !s.checkCanWrite(ctx, ctx.Ref.String()) {
		return s.errorHeader(ctx, w, LockTokenSubmitted(lockRootsAt(ctx, ctx.Ref.String())))
	}
	if _, err := ctx.Ref.Lookup(); err == nil {
		return s.errorHeader(ctx, w, ErrorNotAllowed)
	}
	if r.ContentLength > 0 {
		return s.errorHeader(ctx, w, ErrorUnsupportedType)
	}
	if _, err := ctx.Ref.Mkcol(); err != nil {
		return s.errorHeader(ctx, w, ErrorConflict.WithCause(err))
	}
	w.WriteHeader(http.StatusCreated)
	return http.StatusCreated
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_COPY
func (s *Dispatcher) doCopy(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	return s.handleCopyOrMove(ctx, w, r, false)
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_MOVE
func (s *Dispatcher) doMove(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	return s.handleCopyOrMove(ctx, w, r, true)
}

func (s *Dispatcher) handleCopyOrMove(ctx *Context, w http.ResponseWriter, r *http.Request, move bool) int {
	srcPath := ctx.Ref.String()
	if move && !s.checkCanWrite(ctx, srcPath) {
		return s.errorHeader(ctx, w, LockTokenSubmitted(lockRootsAt(ctx, srcPath)))
	}

	dhdr := r.Header.Get("Destination")
	if dhdr == "" {
		return s.errorHeader(ctx, w, ErrorBadDest)
	}
	durl, err := url.Parse(dhdr)
	if err != nil {
		return s.errorHeader(ctx, w, ErrorBadDest.WithCause(err))
	}
	if durl.Host != "" && durl.Host != r.Host {
		return s.errorHeader(ctx, w, ErrorBadHost)
	}

	destReq := &http.Request{URL: durl, Host: r.Host}
	destLoc, destRel, ok := s.Router.Resolve(destReq)
	if !ok {
		return s.errorHeader(ctx, w, ErrorBadDest)
	}
	destRsvc, err := destLoc.Service()
	if err != nil {
		return s.errorHeader(ctx, w, ErrorBadDest.WithCause(err))
	}
	destSvc, ok := destRsvc.(Service)
	if !ok {
		return s.errorHeader(ctx, w, ErrorBadDest)
	}
	dst, err := destSvc.Resolve(destRel)
	if err != nil {
		return s.errorHeader(ctx, w, ErrorBadDest.WithCause(err))
	}

	if !s.checkCanWrite(ctx, dst.String()) {
		return s.errorHeader(ctx, w, LockTokenSubmitted(lockRootsAt(ctx, dst.String())))
	}
	if dst.String() == srcPath && destLoc == ctx.Location {
		return s.errorHeader(ctx, w, ErrorSameFile)
	}

	if _, err := dst.Lookup(); err == nil && !ctx.Overwrite {
		return s.errorHeader(ctx, w, ErrorDestExists)
	}

	created, err := ctx.Ref.CopyTo(dst, CopyOptions{
		Overwrite: ctx.Overwrite,
		Move:      move,
		Depth:     ctx.Depth,
	})
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}

	// Dead properties follow content only when source and destination
	// share the same backing store (design note §9, Open Question 1);
	// otherwise the destination starts with none.
	if ctx.Location != nil && ctx.Location.Props != nil && destLoc.Props != nil &&
		ctx.Location.Props.SameStore(destLoc.Props) {
		if props, err := ctx.Location.Props.Get(srcPath); err == nil && len(props) > 0 {
			destLoc.Props.Set(dst.String(), props, true)
		}
		if move {
			ctx.Location.Props.Clear(srcPath, true)
		}
	}
	if move {
		clearResourceState(ctx, srcPath, true)
	}

	status := http.StatusNoContent
	if created {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	return status
}

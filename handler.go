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
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opendav/core/auth"
	"github.com/opendav/core/metrics"
	"github.com/opendav/core/router"
	"github.com/opendav/core/xml"
)

// writeErrorBody wraps el in a <DAV:error> document and writes it (§6.4).
func writeErrorBody(w http.ResponseWriter, el *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("error")
	root.CreateAttr("xmlns", xml.NSDAV)
	root.AddChild(el)
	b, err := doc.WriteToBytes()
	if err != nil {
		return
	}
	w.Write(b)
}

// Dispatcher is the http.Handler implementing the core's request
// lifecycle (§4.1): it resolves a request to a Location/Service/Ref via
// Router, runs the location's authorization chain, evaluates the If
// header, and dispatches to the method handler. It is the direct
// descendant of the teacher's WebDAV struct, generalized from a single
// embedded FileSystem to the Router's multi-location model.
type Dispatcher struct {
	Router *router.Router
	Logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher serving the locations in rt.
func NewDispatcher(rt *router.Router) *Dispatcher {
	return &Dispatcher{Router: rt, Logger: log.Logger}
}

func (s *Dispatcher) resolve(r *http.Request) (*Context, error) {
	loc, relPath, ok := s.Router.Resolve(r)
	if !ok {
		return nil, ErrorNotFound
	}
	rsvc, err := loc.Service()
	if err != nil {
		loc.ResetService()
		return nil, ErrorNotYetImplemented.WithCause(err)
	}
	svc, ok := rsvc.(Service)
	if !ok {
		return nil, ErrorNotYetImplemented
	}
	ref, err := svc.Resolve(relPath)
	if err != nil {
		return nil, ErrorBadPath.WithCause(err)
	}

	ctx := &Context{Location: loc, Service: svc, Ref: ref}
	ctx.Depth, err = parseDepth(r)
	if err != nil {
		return ctx, err
	}
	ctx.If, err = parseIfHeader(r)
	if err != nil {
		return ctx, err
	}
	ctx.Timeout = parseTimeout(r)
	ctx.Overwrite = r.Header.Get("Overwrite") != "F"
	return ctx, nil
}

func (s *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { metrics.Observe(r.Method, status, start) }()

	ctx, err := s.resolve(r)
	if err != nil {
		status = s.errorHeader(ctx, w, err)
		return
	}

	if ctx.Location.Filters != nil {
		d := auth.Chain(ctx.Location.Filters).Check(r)
		if d.Verdict == auth.Deny {
			code := d.Status
			if code == 0 {
				code = http.StatusForbidden
			}
			if code == http.StatusNotFound && isCreatingMethod(r.Method) {
				// A 404 here would reveal that the target is unmapped;
				// creating methods fall back to the default deny
				// response instead (§4.1).
				code = http.StatusForbidden
			}
			s.Logger.Warn().Str("path", r.URL.Path).Int("status", code).Msg("authorization denied")
			status = code
			w.WriteHeader(code)
			return
		}
	}

	if ctx.If != nil {
		env := dispatchEnv{ctx: ctx}
		rdef := ctx.Ref.String()
		for _, target := range ctx.If.Targets(rdef) {
			if !ctx.If.EvalResource(env, target, rdef) {
				status = http.StatusPreconditionFailed
				w.WriteHeader(status)
				return
			}
		}
	}

	switch r.Method {
	case http.MethodOptions:
		s.doOptions(ctx, w, r)
	case http.MethodGet:
		status = s.doGet(ctx, w, r)
	case http.MethodHead:
		status = s.doHead(ctx, w, r)
	case "POST":
		status = s.doPost(ctx, w, r)
	case http.MethodDelete:
		status = s.doDelete(ctx, w, r)
	case http.MethodPut:
		status = s.doPut(ctx, w, r)
	case "MKCOL":
		status = s.doMkcol(ctx, w, r)
	case "COPY":
		status = s.doCopy(ctx, w, r)
	case "MOVE":
		status = s.doMove(ctx, w, r)
	case "PROPFIND":
		status = s.doPropfind(ctx, w, r)
	case "PROPPATCH":
		status = s.doProppatch(ctx, w, r)
	case "LOCK":
		status = s.doLock(ctx, w, r)
	case "UNLOCK":
		status = s.doUnlock(ctx, w, r)
	default:
		status = http.StatusBadRequest
		w.WriteHeader(status)
	}
}

// isCreatingMethod reports whether method targets a resource that may not
// yet be mapped, per §4.1's 404-leak rewrite: PUT, LOCK and MKCOL can all
// be the first request to name a new resource.
func isCreatingMethod(method string) bool {
	switch method {
	case http.MethodPut, "LOCK", "MKCOL":
		return true
	}
	return false
}

func (s *Dispatcher) allowedHeader(w http.ResponseWriter, ctx *Context) {
	allowed := "OPTIONS, MKCOL, PUT, LOCK"
	res, err := ctx.Ref.Lookup()
	if err == nil {
		allowed = "OPTIONS, GET, HEAD, POST, DELETE, TRACE, PROPPATCH, COPY, MOVE, LOCK, UNLOCK"
		if res.IsCollection() {
			allowed += ", PUT, PROPFIND"
		} else {
			allowed += ", PROPFIND"
		}
	}
	w.Header().Set("Allow", allowed)
}

// errorHeader writes the status and, where the condition carries a DAV:
// precondition element, an <DAV:error> body (§6.4), returning the status
// written for metrics.
func (s *Dispatcher) errorHeader(ctx *Context, w http.ResponseWriter, e error) int {
	path := "?"
	if ctx != nil && ctx.Ref != nil {
		path = ctx.Ref.String()
	}

	cnd, ok := e.(Condition)
	if !ok {
		s.Logger.Error().Str("path", path).Err(e).Msg("internal error")
		if ctx != nil {
			ctx.Location.ResetService()
		}
		w.WriteHeader(http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	s.Logger.Info().Str("path", path).Int("status", cnd.HTTPCode()).Err(cnd.InternalCause()).Msg(cnd.text)
	if el := cnd.XMLElement(); el != nil {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(cnd.HTTPCode())
		writeErrorBody(w, el)
		return cnd.HTTPCode()
	}
	if cnd.HTTPCode() == http.StatusMethodNotAllowed && ctx != nil {
		s.allowedHeader(w, ctx)
	}
	w.WriteHeader(cnd.HTTPCode())
	return cnd.HTTPCode()
}

func (s *Dispatcher) doOptions(ctx *Context, w http.ResponseWriter, r *http.Request) {
	// http://www.webdav.org/specs/rfc4918.html#dav.compliance.classes
	w.Header().Set("DAV", "1, 2")
	s.allowedHeader(w, ctx)
	w.Header().Set("MS-Author-Via", "DAV")
}

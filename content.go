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
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/opendav/core/byterange"
	"github.com/opendav/core/cond"
)

// http://www.webdav.org/specs/rfc4918.html#rfc.section.9.4
func (s *Dispatcher) doGet(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	return s.servePath(ctx, w, r, true)
}

// http://www.webdav.org/specs/rfc4918.html#rfc.section.9.4
func (s *Dispatcher) doHead(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	return s.servePath(ctx, w, r, false)
}

func (s *Dispatcher) servePath(ctx *Context, w http.ResponseWriter, r *http.Request, withBody bool) int {
	res, err := ctx.Ref.Lookup()
	if err != nil {
		return s.errorHeader(ctx, w, ErrorNotFound.WithCause(err))
	}
	if res.IsCollection() {
		return s.errorHeader(ctx, w, ErrorIsDir)
	}
	info, err := res.Stat()
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}
	et := resourceETag(info)

	rs := cond.ResourceState{ETag: et, Exists: true, Modtime: info.LastModified}
	if outcome := cond.EvaluatePlain(r.Header, r.Method, rs); outcome.Status != 0 {
		w.Header().Set("ETag", et.String())
		w.WriteHeader(outcome.Status)
		return outcome.Status
	}

	w.Header().Set("ETag", et.String())
	w.Header().Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Accept-Ranges", "bytes")

	encoding, ok := negotiateEncoding(r.Header.Get("Accept-Encoding"))
	if !ok {
		return s.errorHeader(ctx, w, ErrorNotAcceptable)
	}

	if !withBody {
		w.WriteHeader(http.StatusOK)
		return http.StatusOK
	}

	fh, err := res.Open()
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}
	defer fh.Close()

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" && cond.IfRangeSatisfied(r.Header, rs) {
		return s.serveRange(w, fh, rangeHeader, info.Size, encoding)
	}

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	ew := newEncodedWriter(w, encoding)
	defer ew.Close()
	w.WriteHeader(http.StatusOK)
	io.Copy(ew, fh)
	return http.StatusOK
}

// serveRange implements §4.6's full Range handling: parse and merge the
// requested ranges, answer 416 with Content-Range: bytes */size when
// none are satisfiable, 206 with a single Content-Range for one range,
// or a multipart/byteranges body for several.
func (s *Dispatcher) serveRange(w http.ResponseWriter, fh ReadHandle, header string, size int64, encoding string) int {
	ranges, err := byterange.Parse(header, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return http.StatusRequestedRangeNotSatisfiable
	}
	if ranges == nil {
		// Header present but unparseable: ignore ranging, serve whole body.
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		ew := newEncodedWriter(w, encoding)
		defer ew.Close()
		w.WriteHeader(http.StatusOK)
		io.Copy(ew, fh)
		return http.StatusOK
	}
	ranges = byterange.Merge(ranges)

	if len(ranges) == 1 {
		rg := ranges[0]
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rg.Start, rg.End, size))
		w.Header().Set("Content-Length", strconv.FormatInt(rg.Length(), 10))
		w.WriteHeader(http.StatusPartialContent)
		fh.Seek(rg.Start, io.SeekStart)
		io.CopyN(w, fh, rg.Length())
		return http.StatusPartialContent
	}

	mw := multipart.NewWriter(w)
	w.Header().Set("Content-Type", "multipart/byteranges; boundary="+mw.Boundary())
	w.WriteHeader(http.StatusPartialContent)
	for _, rg := range ranges {
		part, err := mw.CreatePart(map[string][]string{
			"Content-Range": {fmt.Sprintf("bytes %d-%d/%d", rg.Start, rg.End, size)},
		})
		if err != nil {
			break
		}
		fh.Seek(rg.Start, io.SeekStart)
		io.CopyN(part, fh, rg.Length())
	}
	mw.Close()
	return http.StatusPartialContent
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_POST
//
// POST defaults to GET semantics (§3.6, Open Question 2) unless the
// service or the target resource opts into PostHandler.
func (s *Dispatcher) doPost(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	if ph, ok := ctx.Service.(PostHandler); ok {
		if err := ph.HandlePost(w, r); err != nil {
			return s.errorHeader(ctx, w, err)
		}
		return http.StatusOK
	}
	if res, err := ctx.Ref.Lookup(); err == nil {
		if ph, ok := res.(PostHandler); ok {
			if err := ph.HandlePost(w, r); err != nil {
				return s.errorHeader(ctx, w, err)
			}
			return http.StatusOK
		}
	}
	return s.doGet(ctx, w, r)
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_PUT
func (s *Dispatcher) doPut(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	if !s.checkCanWrite(ctx, ctx.Ref.String()) {
		return s.errorHeader(ctx, w, LockTokenSubmitted(lockRootsAt(ctx, ctx.Ref.String())))
	}

	var fh WriteHandle
	res, err := ctx.Ref.Lookup()
	exists := err == nil
	if exists {
		if res.IsCollection() {
			return s.errorHeader(ctx, w, ErrorIsDir)
		}
		fh, err = res.Truncate()
	} else {
		res, fh, err = ctx.Ref.Create()
	}
	if err != nil {
		return s.errorHeader(ctx, w, ErrorConflict.WithCause(err))
	}
	defer fh.Close()

	body, err := decodeRequestBody(r)
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}
	defer body.Close()

	if _, err := io.Copy(fh, body); err != nil {
		return s.errorHeader(ctx, w, ErrorConflict.WithCause(err))
	}

	// §8 scenario 3: a PUT response, whether it created or replaced the
	// resource, carries the new ETag.
	if info, err := res.Stat(); err == nil {
		w.Header().Set("ETag", resourceETag(info).String())
	}

	if exists {
		w.WriteHeader(http.StatusNoContent)
		return http.StatusNoContent
	}
	w.WriteHeader(http.StatusCreated)
	return http.StatusCreated
}

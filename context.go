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
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/opendav/core/cond"
	"github.com/opendav/core/etag"
	"github.com/opendav/core/router"
)

// Context carries everything the dispatcher resolves from a request
// before a method handler runs (§4.1, §4.2): the matched location and
// its service, the target Ref, and the parsed Depth/Timeout/If/Overwrite
// request metadata.
type Context struct {
	Location  *router.Location
	Service   Service
	Ref       Ref
	If        *cond.IfTag
	Depth     int
	Timeout   time.Duration
	Overwrite bool
	Principal string
}

// parseDepth gets the desired depth from the request, defaulting to
// infinity if none was specified (§4.4).
func parseDepth(r *http.Request) (int, error) {
	dh := r.Header.Get("Depth")
	if dh == "infinity" || dh == "Infinity" || dh == "" {
		return -1, nil
	}
	d, err := strconv.Atoi(dh)
	if err != nil {
		return 0, ErrorBadDepth.WithCause(err)
	}
	if d < 0 {
		return 0, ErrorBadDepth.WithCause(errors.New("depth must be non-negative or infinity"))
	}
	return d, nil
}

// parseTimeout gets the desired lock timeout from the request, defaulting
// to one second if none was specified or usable (§4.10). Only the first
// three comma-separated options are considered; the spec permits
// ignoring the rest.
func parseTimeout(r *http.Request) time.Duration {
	opts := strings.Split(r.Header.Get("Timeout"), ",")
	if len(opts) > 3 {
		opts = opts[:3]
	}
	for _, o := range opts {
		o = strings.TrimSpace(o)
		if o == "Infinite" {
			continue
		}
		o = strings.TrimPrefix(o, "Second-")
		d, err := strconv.Atoi(o)
		if err != nil {
			continue
		}
		return time.Duration(d) * time.Second
	}
	return time.Second
}

// parseIfHeader parses and host-rewrites the If header, if present.
func parseIfHeader(r *http.Request) (*cond.IfTag, error) {
	ih := r.Header.Get("If")
	if ih == "" {
		return nil, nil
	}
	t, err := cond.ParseIfTag(ih)
	if err != nil {
		return nil, err
	}
	if err := t.RewriteHosts(r.Host); err != nil {
		return nil, err
	}
	return t, nil
}

// dispatchEnv implements cond.Env over a Context's service and location,
// answering If-header ETag and lock-token tests against live resource
// state (§4.3).
type dispatchEnv struct {
	ctx *Context
}

func (e dispatchEnv) ETag(uri string) etag.ETag {
	ref, err := e.ctx.Service.Resolve(uri)
	if err != nil {
		return etag.ETag{}
	}
	res, err := ref.Lookup()
	if err != nil {
		return etag.ETag{}
	}
	info, err := res.Stat()
	if err != nil {
		return etag.ETag{}
	}
	return resourceETag(info)
}

func (e dispatchEnv) Locked(uri, token string) bool {
	if e.ctx.Location == nil || e.ctx.Location.Locks == nil {
		return false
	}
	return e.ctx.Location.Locks.FindLockByToken(token, uri) != nil
}

// resourceETag derives the entity tag the dispatcher reports for a
// resource's current content state (§3.3): strong, derived from size and
// modification time, matching the teacher's etag() helper.
func resourceETag(info ResourceInfo) etag.ETag {
	return etag.New(strconv.FormatInt(info.Size, 10) + "-" + info.LastModified.UTC().Format(time.RFC3339Nano))
}

// checkCanWrite reports whether the request is entitled to modify p,
// i.e. either no lock covers it, or the If header asserts a token for a
// lock that does (§4.3's lock-token-submission rule).
func (s *Dispatcher) checkCanWrite(ctx *Context, p string) bool {
	if ctx.Location == nil || ctx.Location.Locks == nil {
		return true
	}
	locks := ctx.Location.Locks.FindLocksAt(p, true)
	if len(locks) == 0 {
		return true
	}
	if ctx.If == nil {
		return false
	}
	tokens := ctx.If.GetAllTokens()
	for _, t := range tokens {
		for _, l := range locks {
			if l.Token == t {
				return true
			}
		}
	}
	return false
}

// lockRootsAt returns the root paths of every lock covering p, for
// reporting DAV:lock-token-submitted (§4.3).
func lockRootsAt(ctx *Context, p string) []string {
	if ctx.Location == nil || ctx.Location.Locks == nil {
		return nil
	}
	locks := ctx.Location.Locks.FindLocksAt(p, true)
	roots := make([]string, 0, len(locks))
	for _, l := range locks {
		roots = append(roots, l.Path)
	}
	return roots
}

// --- §4.2 content-encoding negotiation ---

var knownEncodings = []string{"gzip", "deflate", "identity"}

// encPreference is the server's fixed tie-break order among acceptable
// encodings: gzip, then deflate, then identity (§4.2).
var encPreference = map[string]int{"gzip": 0, "deflate": 1, "identity": 2}

type acceptEncoding struct {
	name string
	q    float64
}

// negotiateEncoding parses Accept-Encoding and picks the response body
// encoding per §4.2: expand "*" against the known set, sort by client
// q-value with a fixed preference order as tie-break, and choose the
// first acceptable one. An empty header accepts everything. Returns
// ("", false) when nothing is acceptable (the caller must answer 406),
// which can only happen when the client explicitly excludes identity
// (q=0) and no compressed encoding is acceptable either.
func negotiateEncoding(header string) (string, bool) {
	if strings.TrimSpace(header) == "" {
		return "identity", true
	}

	explicit := map[string]float64{}
	var wildcardQ float64 = -1
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, q := parseQValue(part)
		if name == "*" {
			wildcardQ = q
			continue
		}
		explicit[strings.ToLower(name)] = q
	}

	var candidates []acceptEncoding
	for _, enc := range knownEncodings {
		q, ok := explicit[enc]
		if !ok {
			if wildcardQ >= 0 {
				q = wildcardQ
			} else if enc == "identity" {
				q = 1 // identity is always acceptable unless named q=0 (RFC 7231 §5.3.4)
			} else {
				continue
			}
		}
		if q <= 0 {
			continue
		}
		candidates = append(candidates, acceptEncoding{name: enc, q: q})
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].q != candidates[j].q {
			return candidates[i].q > candidates[j].q
		}
		return encPreference[candidates[i].name] < encPreference[candidates[j].name]
	})
	return candidates[0].name, true
}

func parseQValue(part string) (string, float64) {
	fields := strings.Split(part, ";")
	name := strings.TrimSpace(fields[0])
	q := 1.0
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if v, ok := strings.CutPrefix(f, "q="); ok {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				q = parsed
			}
		}
	}
	return name, q
}

// encodedWriter wraps w's body in the chosen content-coding and sets the
// corresponding response header; identity is a no-op. Callers must
// Close() the returned writer to flush the encoder.
type encodedWriter struct {
	io.Writer
	io.Closer
}

func newEncodedWriter(w http.ResponseWriter, encoding string) encodedWriter {
	switch encoding {
	case "gzip":
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		return encodedWriter{Writer: gz, Closer: gz}
	case "deflate":
		w.Header().Set("Content-Encoding", "deflate")
		fw, _ := flate.NewWriter(w, flate.DefaultCompression)
		return encodedWriter{Writer: fw, Closer: fw}
	default:
		return encodedWriter{Writer: w, Closer: io.NopCloser(nil)}
	}
}

// decodeRequestBody applies the inverse of Content-Encoding to r's body
// before it is read (§4.2). A single known encoding is accepted; an
// unknown or stacked (comma-separated) encoding is rejected with 415.
func decodeRequestBody(r *http.Request) (io.ReadCloser, error) {
	ce := strings.TrimSpace(r.Header.Get("Content-Encoding"))
	if ce == "" || strings.EqualFold(ce, "identity") {
		return r.Body, nil
	}
	if strings.Contains(ce, ",") {
		return nil, ErrorUnsupportedType.WithCause(errors.New("stacked content-encoding not supported"))
	}
	switch strings.ToLower(ce) {
	case "gzip":
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, ErrorUnsupportedType.WithCause(err)
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(r.Body), nil
	default:
		return nil, ErrorUnsupportedType.WithCause(errors.New("unknown content-encoding " + ce))
	}
}

// --- §4.2 XML parsing safety ---

// maxEntityExpansion bounds DTD internal-entity text length; entities
// are otherwise allowed, only external (SYSTEM/PUBLIC) declarations are
// rejected outright, since those are the classic XXE vector that
// encoding/xml (and so etree, which is built on it) does not itself
// guard against at the declaration-scanning level.
const maxEntityExpansion = 100

// checkXMLSafety scans a request body for DOCTYPE declarations that
// reference an external entity, returning NoExternalEntities() if found,
// and rejects any single internal entity whose replacement text exceeds
// maxEntityExpansion characters (§4.2).
func checkXMLSafety(body []byte) error {
	doctype := bytes.Index(body, []byte("<!DOCTYPE"))
	if doctype < 0 {
		return nil
	}
	end := bytes.IndexByte(body[doctype:], '>')
	if end < 0 {
		end = len(body) - doctype
	}
	// An internal subset ("[...]") holds '>' of its own declarations; the
	// DOCTYPE only ends at the '>' after its closing ']'.
	if open := bytes.IndexByte(body[doctype:], '['); open >= 0 && open < end {
		end = len(body) - doctype
		if cl := bytes.IndexByte(body[doctype+open:], ']'); cl >= 0 {
			if gt := bytes.IndexByte(body[doctype+open+cl:], '>'); gt >= 0 {
				end = open + cl + gt
			}
		}
	}
	decl := body[doctype : doctype+end]
	if bytes.Contains(decl, []byte("SYSTEM")) || bytes.Contains(decl, []byte("PUBLIC")) {
		return NoExternalEntities()
	}
	for _, entity := range bytes.Split(decl, []byte("<!ENTITY")) {
		q := bytes.IndexByte(entity, '"')
		if q < 0 {
			continue
		}
		rest := entity[q+1:]
		end := bytes.IndexByte(rest, '"')
		if end < 0 {
			continue
		}
		if end > maxEntityExpansion {
			return NoExternalEntities()
		}
	}
	return nil
}

// readXMLBody reads r's body fully (after content-decoding), applies the
// XML safety check, and returns a reader positioned at the start for the
// xml package's parsers to consume.
func readXMLBody(r *http.Request) (io.Reader, error) {
	body, err := decodeRequestBody(r)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return bytes.NewReader(data), nil
	}
	if err := checkXMLSafety(data); err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

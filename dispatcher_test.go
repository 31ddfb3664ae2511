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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendav/core/lock"
	"github.com/opendav/core/memfs"
	"github.com/opendav/core/propstore"
	"github.com/opendav/core/router"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	loc := router.NewLocation(router.MatchPattern{Path: "/dav/"}, func() (router.Service, error) {
		return memfs.New(), nil
	})
	loc.Locks = lock.NewManager()
	loc.Props = propstore.NewMemStore()
	loc.CaseSensitive = true

	rt := &router.Router{Locations: []*router.Location{loc}}
	return NewDispatcher(rt)
}

func do(d *Dispatcher, method, target string, body string, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	d.ServeHTTP(w, r)
	return w
}

func TestPutThenGetRoundTrips(t *testing.T) {
	d := newTestDispatcher(t)

	put := do(d, http.MethodPut, "/dav/hello.txt", "hello world", nil)
	require.Equal(t, http.StatusCreated, put.Code)

	get := do(d, http.MethodGet, "/dav/hello.txt", "", nil)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "hello world", get.Body.String())
	assert.NotEmpty(t, get.Header().Get("ETag"))
}

func TestGetMissingIsNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	w := do(d, http.MethodGet, "/dav/nope.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRangeRequestServesPartialContent(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, http.StatusCreated, do(d, http.MethodPut, "/dav/range.txt", "0123456789", nil).Code)

	w := do(d, http.MethodGet, "/dav/range.txt", "", map[string]string{"Range": "bytes=2-5"})
	require.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "2345", w.Body.String())
	assert.Equal(t, "bytes 2-5/10", w.Header().Get("Content-Range"))
}

func TestMkcolThenPropfindListsMember(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, http.StatusCreated, do(d, "MKCOL", "/dav/col", "", nil).Code)
	require.Equal(t, http.StatusCreated, do(d, http.MethodPut, "/dav/col/a.txt", "x", nil).Code)

	body := `<?xml version="1.0"?><propfind xmlns="DAV:"><allprop/></propfind>`
	w := do(d, "PROPFIND", "/dav/col", body, map[string]string{"Depth": "1"})
	require.Equal(t, StatusMulti, w.Code)
	assert.Contains(t, w.Body.String(), "/dav/col/a.txt")
}

func TestProppatchSetAndReadBack(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, http.StatusCreated, do(d, http.MethodPut, "/dav/p.txt", "x", nil).Code)

	patch := `<?xml version="1.0"?>
<propertyupdate xmlns="DAV:" xmlns:z="http://example.com/ns">
  <set><prop><z:color>blue</z:color></prop></set>
</propertyupdate>`
	w := do(d, "PROPPATCH", "/dav/p.txt", patch, nil)
	require.Equal(t, StatusMulti, w.Code)

	find := `<?xml version="1.0"?><propfind xmlns="DAV:"><allprop/></propfind>`
	got := do(d, "PROPFIND", "/dav/p.txt", find, map[string]string{"Depth": "0"})
	require.Equal(t, StatusMulti, got.Code)
	assert.Contains(t, got.Body.String(), "blue")
}

func TestLockThenUnlockReleasesWriteAccess(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, http.StatusCreated, do(d, http.MethodPut, "/dav/locked.txt", "a", nil).Code)

	lockBody := `<?xml version="1.0"?>
<lockinfo xmlns="DAV:">
  <lockscope><exclusive/></lockscope>
  <locktype><write/></locktype>
  <owner><href>mailto:student@example.com</href></owner>
</lockinfo>`
	lockResp := do(d, "LOCK", "/dav/locked.txt", lockBody, map[string]string{"Depth": "0"})
	require.Equal(t, http.StatusOK, lockResp.Code)
	token := strings.Trim(lockResp.Header().Get("Lock-Token"), "<>")
	require.NotEmpty(t, token)

	// Writing without the token is refused (423 Locked).
	denied := do(d, http.MethodPut, "/dav/locked.txt", "b", nil)
	assert.Equal(t, StatusLocked, denied.Code)

	// Writing with the token in If succeeds.
	allowed := do(d, http.MethodPut, "/dav/locked.txt", "b", map[string]string{
		"If": "(<" + token + ">)",
	})
	assert.Equal(t, http.StatusNoContent, allowed.Code)

	unlock := do(d, "UNLOCK", "/dav/locked.txt", "", map[string]string{"Lock-Token": "<" + token + ">"})
	assert.Equal(t, http.StatusNoContent, unlock.Code)
}

func TestCopyAndMove(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, http.StatusCreated, do(d, http.MethodPut, "/dav/src.txt", "payload", nil).Code)

	copyResp := do(d, "COPY", "/dav/src.txt", "", map[string]string{"Destination": "http://example.com/dav/dst.txt"})
	require.Equal(t, http.StatusCreated, copyResp.Code)
	assert.Equal(t, "payload", do(d, http.MethodGet, "/dav/dst.txt", "", nil).Body.String())
	assert.Equal(t, "payload", do(d, http.MethodGet, "/dav/src.txt", "", nil).Body.String())

	moveResp := do(d, "MOVE", "/dav/src.txt", "", map[string]string{"Destination": "http://example.com/dav/moved.txt"})
	require.Equal(t, http.StatusCreated, moveResp.Code)
	assert.Equal(t, "payload", do(d, http.MethodGet, "/dav/moved.txt", "", nil).Body.String())
	assert.Equal(t, http.StatusNotFound, do(d, http.MethodGet, "/dav/src.txt", "", nil).Code)
}

func TestDeleteRemovesResource(t *testing.T) {
	d := newTestDispatcher(t)
	require.Equal(t, http.StatusCreated, do(d, http.MethodPut, "/dav/gone.txt", "x", nil).Code)
	require.Equal(t, http.StatusNoContent, do(d, http.MethodDelete, "/dav/gone.txt", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(d, http.MethodGet, "/dav/gone.txt", "", nil).Code)
}

func TestOptionsAdvertisesDAVCompliance(t *testing.T) {
	d := newTestDispatcher(t)
	w := do(d, http.MethodOptions, "/dav/", "", nil)
	assert.Equal(t, "1, 2", w.Header().Get("DAV"))
}

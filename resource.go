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
	"io"
	"net/http"
	"time"

	"github.com/opendav/core/xml"
)

// Service owns a URL prefix and maps its path space to resources (§3.6).
// It is the direct descendant of the teacher's FileSystem interface,
// renamed to match the spec's vocabulary; a service that is reusable
// across requests (§5) should say so via Reusable.
type Service interface {
	// Resolve returns a Ref for p, a path relative to the service root.
	// Resolve never fails merely because p is unmapped — callers check
	// Ref.Lookup for that; it fails only for a structurally invalid path.
	Resolve(p string) (Ref, error)
	// Reusable reports whether this Service instance may be shared
	// across requests (§5). Non-reusable services are instantiated
	// fresh per request by the router.
	Reusable() bool
	// Dumpz is a debugging hook enumerating the service's resources.
	Dumpz() []string
}

// CopyOptions carries the parameters of a COPY/MOVE operation (§4.8).
type CopyOptions struct {
	Overwrite, Move bool
	Depth           int
}

// Ref names a location in a Service's path space, whether or not it is
// currently mapped to a Resource (§3.6 "unmapped URI").
type Ref interface {
	String() string
	Parent() Ref
	Lookup() (Resource, error)
	LookupSubtree(depth int) ([]Resource, error)
	Mkcol() (Resource, error)
	Create() (Resource, WriteHandle, error)
	CopyTo(dst Ref, opt CopyOptions) (created bool, err error)
	Remove() error
	RemoveRecursive() map[string]error
}

// ResourceInfo carries the metadata a Resource exposes about itself.
type ResourceInfo struct {
	Created, LastModified time.Time
	Size                  int64
}

// Resource is an abstract node identified by a path under a service root
// (§3.5). Dead properties are not part of this interface — they are
// owned by a propstore.Store, keyed by Path(); Resource exposes only
// live properties, which LiveProperty computes on demand.
type Resource interface {
	Path() string
	IsCollection() bool
	Stat() (ResourceInfo, error)
	Open() (ReadHandle, error)
	Truncate() (WriteHandle, error)
	// LiveProperty returns the value of a live (server-computed)
	// property this resource exposes beyond the generic set the
	// dispatcher already knows how to compute (resourcetype,
	// supportedlock, lockdiscovery, displayname, getetag,
	// getlastmodified, getcontentlength, creationdate).
	LiveProperty(name xml.QName) (xml.Property, bool)
	// LivePropertyNames lists the live properties LiveProperty can
	// answer for, used to satisfy an <allprop>/<propname> PROPFIND.
	LivePropertyNames() []xml.QName
}

// ReadHandle is an open reference to a resource's content for reading.
type ReadHandle interface {
	io.ReadSeeker
	io.Closer
}

// WriteHandle is an open reference to a resource's content for writing.
type WriteHandle interface {
	io.ReadSeeker
	io.Closer
	io.Writer
}

// PostHandler is an optional capability a Resource or Service may
// implement to override the default POST-behaves-like-GET semantics
// (design note §9, Open Question 2).
type PostHandler interface {
	HandlePost(w http.ResponseWriter, r *http.Request) error
}

// InfiniteDepthRefuser is an optional capability a collection Resource may
// implement to refuse an infinite-depth PROPFIND (§4.4), e.g. because
// enumerating its full subtree would be prohibitively expensive. When a
// collection implements this and RefusesInfiniteDepth returns true, a
// Depth: infinity PROPFIND against it fails with the
// DAV:propfind-finite-depth precondition instead of being served.
type InfiniteDepthRefuser interface {
	RefusesInfiniteDepth() bool
}

// emptyHandle is a zero-length ReadHandle. The dispatcher does not use it;
// HEAD requests are answered without opening a handle at all (§4.6).
type emptyHandle struct{}

var _ ReadHandle = emptyHandle{}

func (emptyHandle) Read(p []byte) (int, error)                 { return 0, io.EOF }
func (emptyHandle) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (emptyHandle) Close() error                                { return nil }

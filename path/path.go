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

// Package path implements the hierarchical path arithmetic shared by the
// lock manager, property store and resource tree: subtree containment,
// depth-bounded inclusion, and the canonical/wire URL encodings of §6.5.
package path

import (
	"net/url"
	gp "path"
	"strings"
)

// InTree reports whether path is subtree itself or a descendant of it.
func InTree(path, subtree string) bool {
	if path == subtree {
		return true
	}
	if !strings.HasSuffix(subtree, "/") {
		subtree += "/"
	}
	return strings.HasPrefix(path, subtree)
}

// Included reports whether fn lies within subtree at a depth compatible
// with depth (0, 1, or a negative value standing for infinity). When
// included, it also returns fn's path relative to subtree.
func Included(fn, subtree string, depth int) (string, bool) {
	if fn == subtree {
		return "", true
	}
	if !InTree(fn, subtree) {
		return "", false
	}
	root := subtree
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	rel := gp.Clean(fn[len(root):])
	fd := len(strings.Split(rel, "/"))
	if depth >= 0 && fd > depth {
		return "", false
	}
	return rel, true
}

// Clean normalizes a resource path the way the core stores it internally:
// always absolute, "." segments and redundant slashes collapsed.
func Clean(p string) string {
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return gp.Clean(p)
}

// Join joins path elements the way Resource.Child does to form a child
// path, honoring the cleanliness invariant above.
func Join(elem ...string) string {
	return Clean(gp.Join(elem...))
}

// CanonicalEncode applies the minimal, internal percent-encoding described
// in §6.5: only '%' is escaped (as "%25"). s is a whole path, so every '/'
// in it is taken as a segment separator and left as is; a '/' inside a
// segment name is not escaped. This is what the core stores and compares
// paths as; it is not suitable for writing into an HTTP response — for
// that, use URLEncode.
func CanonicalEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// URLEncode percent-encodes a canonical path for use in an outgoing href,
// escaping all path-reserved characters per RFC 3986 while leaving the
// slashes that separate segments intact.
func URLEncode(s string) string {
	u := url.URL{Path: s}
	return u.EscapedPath()
}

// Decode reverses URLEncode/wire encoding. Only standard %XX triplets are
// accepted; unlike query strings, '+' is never treated as a space (§6.5).
func Decode(s string) (string, error) {
	// url.PathUnescape already treats '+' literally, matching the contract.
	return url.PathUnescape(s)
}

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

// Package xml implements the §3.1 qualified-name registry, the §3.2
// property value wire format, the §4.13 Multi-Status writer, and the
// XML request parsers for PROPFIND, PROPPATCH and LOCK.
package xml

import "github.com/opendav/core/value"

// Well-known namespace URIs (§3.1).
const (
	NSDAV  = "DAV:"
	NSXS   = "http://www.w3.org/2001/XMLSchema"
	NSXSI  = "http://www.w3.org/2001/XMLSchema-instance"
	NSMS   = "urn:schemas-microsoft-com:"
)

// Built-in DAV: property names whose type is mandated by the spec and
// cannot be overridden by a caller-supplied xsi:type (§3.2, §4.4).
var builtinProperties = map[string]bool{
	"creationdate":       true,
	"displayname":        true,
	"getcontentlanguage": true,
	"getcontentlength":   true,
	"getcontenttype":     true,
	"getetag":            true,
	"getlastmodified":    true,
	"lockdiscovery":      true,
	"resourcetype":       true,
	"supportedlock":      true,
}

// QName is a (namespace URI, local name) pair (§3.1). Equality is exact
// string equality on both halves.
type QName struct {
	Space, Local string
}

func (q QName) String() string {
	if q.Space == "" {
		return q.Local
	}
	return q.Space + ":" + q.Local
}

// IsBuiltin reports whether q names a WebDAV built-in property (§4.4: such
// properties never get an inferred xsi:type).
func (q QName) IsBuiltin() bool {
	return q.Space == NSDAV && builtinProperties[q.Local]
}

// Property is a named, typed, optionally language-tagged property
// (§3.2). Err, when non-nil, indicates the property carries an error
// status rather than a meaningful Type/Val (e.g. PROPFIND on an
// unavailable property, or a PROPPATCH failure reported back to the
// caller); in that case Type and Val are not meaningful.
type Property struct {
	Name QName
	Type string // XSD type name, e.g. "xs:int"; empty if untyped/unknown
	Val  value.Value
	Err  error
}

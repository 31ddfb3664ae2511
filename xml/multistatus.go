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

package xml

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/beevik/etree"
)

// http://www.webdav.org/specs/rfc4918.html#status.code.extensions.to.http11
const (
	StatusMulti               = 207
	StatusUnprocessableEntity = 422
	StatusLocked              = 423
	StatusFailedDependency    = 424
	StatusInsufficientStorage = 507
)

var extStatusText = map[int]string{
	StatusMulti:               "Multi-Status",
	StatusUnprocessableEntity: "Unprocessable Entity",
	StatusLocked:              "Locked",
	StatusFailedDependency:    "Failed Dependency",
	507:                       "Insufficient Storage",
}

// ReasonPhrase returns the canonical reason phrase for code, including the
// WebDAV extension codes that net/http does not know about (§6.3).
func ReasonPhrase(code int) string {
	if t, ok := extStatusText[code]; ok {
		return t
	}
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Status"
}

// brokenMiniRedirector matches the User-Agent of the long-known-broken
// Microsoft Web Folders / mini-redirector WebDAV client, which cannot
// parse a default (unprefixed) DAV: namespace declaration on the root
// element (design note §9, "Explorer compatibility hack").
func brokenMiniRedirector(userAgent string) bool {
	return strings.Contains(userAgent, "Microsoft-WebDAV-MiniRedir") ||
		strings.Contains(userAgent, "MiniRedir")
}

// nsRegistry allocates stable element-name prefixes for namespace URIs
// referenced by a response, per §4.13: conventional prefixes for the
// well-known namespaces, then "a".."z", then "ns26", "ns27", ...
type nsRegistry struct {
	prefixOf map[string]string
	next     int
}

func newNSRegistry() *nsRegistry {
	return &nsRegistry{prefixOf: make(map[string]string)}
}

func (r *nsRegistry) prefix(uri string) string {
	if uri == "" {
		return ""
	}
	if p, ok := r.prefixOf[uri]; ok {
		return p
	}
	var p string
	switch uri {
	case NSXS:
		p = "xs"
	case NSXSI:
		p = "xsi"
	case NSMS:
		p = "Z"
	default:
		if r.next < 26 {
			p = string(rune('a' + r.next))
		} else {
			p = fmt.Sprintf("ns%d", r.next)
		}
		r.next++
	}
	r.prefixOf[uri] = p
	return p
}

// MultiStatus builds a streaming-friendly DAV:multistatus document
// (§4.13). Responses are appended as they are produced; Send writes the
// accumulated document once traversal completes. (The teacher's
// implementation buffered whole-document marshaling too; true
// incremental flushing per design note §9 would require switching the
// http.ResponseWriter to a raw token encoder, which the etree-based
// element model here does not support mid-stream.)
type MultiStatus struct {
	doc        *etree.Document
	root       *etree.Element
	ns         *nsRegistry
	davPrefix  string // "" for default namespace, "D" for explicit prefix mode
}

// NewMultiStatus creates an empty Multi-Status document. userAgent selects
// the explicit-DAV:-prefix compatibility mode for broken clients.
func NewMultiStatus(userAgent string) *MultiStatus {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	ms := &MultiStatus{doc: doc, ns: newNSRegistry()}
	if brokenMiniRedirector(userAgent) {
		ms.davPrefix = "D"
	}

	root := doc.CreateElement(ms.davTag("multistatus"))
	if ms.davPrefix != "" {
		root.CreateAttr("xmlns:"+ms.davPrefix, NSDAV)
	} else {
		root.CreateAttr("xmlns", NSDAV)
	}
	ms.root = root
	return ms
}

func (ms *MultiStatus) davTag(local string) string {
	if ms.davPrefix == "" {
		return local
	}
	return ms.davPrefix + ":" + local
}

// StatusGroup is one <propstat>-equivalent group: a shared HTTP status
// plus the properties (or, for a plain <status> response, none) that
// share it.
type StatusGroup struct {
	Status      int
	Props       []Property
	Error       *etree.Element // optional DAV:error payload (§4.13)
	Description string
}

// AddResponse appends one <response> for href, with one <propstat> per
// StatusGroup (§4.4/§4.13: "every property returned appears under
// exactly one propstat per response").
func (ms *MultiStatus) AddResponse(href string, groups []StatusGroup) {
	resp := ms.root.CreateElement(ms.davTag("response"))
	resp.CreateElement(ms.davTag("href")).SetText(href)

	for _, g := range groups {
		if len(g.Props) == 0 && g.Error == nil && g.Description == "" {
			// A bare per-resource status (e.g. COPY/MOVE/DELETE member
			// failure) uses <status> directly on <response>, not <propstat>.
			resp.CreateElement(ms.davTag("status")).SetText(ms.statusLine(g.Status))
			continue
		}
		ps := resp.CreateElement(ms.davTag("propstat"))
		if len(g.Props) > 0 {
			propEl := ps.CreateElement(ms.davTag("prop"))
			for _, p := range g.Props {
				ms.encodeProperty(propEl, p)
			}
		}
		ps.CreateElement(ms.davTag("status")).SetText(ms.statusLine(g.Status))
		ms.addErrorAndDescription(ps, g.Error, g.Description)
	}
}

// AddStatus appends a bare-status <response> (no properties) — used by
// DELETE/COPY/MOVE to report a per-member failure.
func (ms *MultiStatus) AddStatus(href string, status int, cause error) {
	resp := ms.root.CreateElement(ms.davTag("response"))
	resp.CreateElement(ms.davTag("href")).SetText(href)
	resp.CreateElement(ms.davTag("status")).SetText(ms.statusLine(status))
	if cause != nil {
		resp.CreateElement(ms.davTag("responsedescription")).SetText(cause.Error())
	}
}

func (ms *MultiStatus) addErrorAndDescription(parent *etree.Element, errEl *etree.Element, desc string) {
	if errEl != nil {
		wrap := parent.CreateElement(ms.davTag("error"))
		wrap.AddChild(errEl.Copy())
	}
	if desc != "" {
		parent.CreateElement(ms.davTag("responsedescription")).SetText(desc)
	}
}

func (ms *MultiStatus) statusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, ReasonPhrase(code))
}

// Send serializes and writes the document as a 207 response.
func (ms *MultiStatus) Send(w http.ResponseWriter) error {
	b, err := ms.doc.WriteToBytes()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(StatusMulti)
	_, err = w.Write(b)
	return err
}

// SendProp writes a standalone <D:prop> response outside of Multi-Status
// (used by LOCK's success body, §4.10).
func SendProp(p Property, w http.ResponseWriter) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("prop")
	root.CreateAttr("xmlns", NSDAV)
	ms := &MultiStatus{doc: doc, root: root, ns: newNSRegistry()}
	ms.encodeProperty(root, p)
	b, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(b)
	return nil
}

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
	"strings"

	"github.com/beevik/etree"

	corepath "github.com/opendav/core/path"
	"github.com/opendav/core/value"
	"github.com/opendav/core/xml"
)

// genericLiveProperties names the live properties every resource answers
// for beyond what a Resource's own LiveProperty contributes (§4.4).
var genericLiveProperties = []xml.QName{
	{Space: xml.NSDAV, Local: "resourcetype"},
	{Space: xml.NSDAV, Local: "supportedlock"},
	{Space: xml.NSDAV, Local: "lockdiscovery"},
	{Space: xml.NSDAV, Local: "displayname"},
	{Space: xml.NSDAV, Local: "getetag"},
	{Space: xml.NSDAV, Local: "getlastmodified"},
	{Space: xml.NSDAV, Local: "getcontentlength"},
	{Space: xml.NSDAV, Local: "creationdate"},
}

// getPropValue computes the current value of a single property, whether
// it is one of the generic live properties, a Resource-specific live
// property, or a stored dead property (§4.4/§4.12). ok is false when the
// property is unknown for this resource.
func (s *Dispatcher) getPropValue(ctx *Context, name xml.QName, res Resource, dead map[xml.QName]xml.Property) (xml.Property, bool) {
	switch name {
	case xml.QName{Space: xml.NSDAV, Local: "resourcetype"}:
		p := xml.Property{Name: name}
		if res.IsCollection() {
			p.Val = value.NewXML(collectionElement())
		}
		return p, true
	case xml.QName{Space: xml.NSDAV, Local: "supportedlock"}:
		return xml.Property{Name: name, Val: value.NewXML(supportedLockElement())}, true
	case xml.QName{Space: xml.NSDAV, Local: "lockdiscovery"}:
		el := etree.NewElement("lockdiscovery")
		if ctx.Location != nil && ctx.Location.Locks != nil {
			for _, l := range ctx.Location.Locks.FindLocksAt(res.Path(), true) {
				el.AddChild(lockActiveElement(l))
			}
		}
		return xml.Property{Name: name, Val: value.NewXML(el)}, true
	case xml.QName{Space: xml.NSDAV, Local: "displayname"}:
		parts := strings.Split(strings.TrimSuffix(res.Path(), "/"), "/")
		return xml.Property{Name: name, Val: value.NewString(parts[len(parts)-1])}, true
	case xml.QName{Space: xml.NSDAV, Local: "getetag"}:
		info, err := res.Stat()
		if err != nil {
			return xml.Property{}, false
		}
		return xml.Property{Name: name, Val: value.NewString(resourceETag(info).String())}, true
	case xml.QName{Space: xml.NSDAV, Local: "getlastmodified"}:
		info, err := res.Stat()
		if err != nil {
			return xml.Property{}, false
		}
		return xml.Property{Name: name, Val: value.NewTime(info.LastModified)}, true
	case xml.QName{Space: xml.NSDAV, Local: "getcontentlength"}:
		if res.IsCollection() {
			return xml.Property{}, false
		}
		info, err := res.Stat()
		if err != nil {
			return xml.Property{}, false
		}
		return xml.Property{Name: name, Val: value.NewInt64(info.Size)}, true
	case xml.QName{Space: xml.NSDAV, Local: "creationdate"}:
		info, err := res.Stat()
		if err != nil {
			return xml.Property{}, false
		}
		return xml.Property{Name: name, Val: value.NewTime(info.Created)}, true
	}

	if p, ok := res.LiveProperty(name); ok {
		return p, true
	}
	if p, ok := dead[name]; ok {
		return p, true
	}
	return xml.Property{}, false
}

func collectionElement() *etree.Element {
	el := etree.NewElement("collection")
	el.CreateAttr("xmlns", xml.NSDAV)
	return el
}

func supportedLockElement() *etree.Element {
	el := etree.NewElement("supportedlock")
	for _, typ := range []string{"exclusive", "shared"} {
		entry := el.CreateElement("lockentry")
		entry.CreateElement("lockscope").CreateElement(typ)
		entry.CreateElement("locktype").CreateElement("write")
	}
	return el
}

// allPropertyNames lists every name a resource answers for, for an
// <allprop>/<propname> request (§4.4).
func allPropertyNames(res Resource, dead map[xml.QName]xml.Property) []xml.QName {
	names := append([]xml.QName{}, genericLiveProperties...)
	names = append(names, res.LivePropertyNames()...)
	for n := range dead {
		names = append(names, n)
	}
	return names
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_PROPFIND
func (s *Dispatcher) doPropfind(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	in, err := readXMLBody(r)
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}
	req, err := xml.ParsePropFind(in)
	if err != nil {
		return s.errorHeader(ctx, w, ErrorBadPropfind.WithCause(err))
	}

	if ctx.Depth < 0 {
		if root, err := ctx.Ref.Lookup(); err == nil && root.IsCollection() {
			if refuser, ok := root.(InfiniteDepthRefuser); ok && refuser.RefusesInfiniteDepth() {
				return s.errorHeader(ctx, w, PropfindFiniteDepth())
			}
		}
	}

	resources, err := ctx.Ref.LookupSubtree(ctx.Depth)
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}

	base := ""
	if ctx.Location != nil {
		base = strings.TrimSuffix(ctx.Location.Match.Path, "/")
	}
	ms := xml.NewMultiStatus(r.Header.Get("User-Agent"))
	for _, res := range resources {
		dead, _ := loadDead(ctx, res.Path())

		var wantNames []xml.QName
		switch {
		case req.PropName:
			wantNames = allPropertyNames(res, dead)
		case req.AllProp:
			wantNames = allPropertyNames(res, dead)
		default:
			wantNames = req.PropertyNames
		}

		var found, missing []xml.Property
		for _, n := range wantNames {
			p, ok := s.getPropValue(ctx, n, res, dead)
			if !ok {
				missing = append(missing, xml.Property{Name: n})
				continue
			}
			if req.PropName {
				// §4.4: <propname> reports names and types only, never
				// values — but the type itself (explicit or inferred
				// from the value's kind) must survive.
				typ := p.Type
				if typ == "" && !p.Name.IsBuiltin() && p.Val.Kind != value.Null && p.Val.Kind != value.XML {
					typ = p.Val.Kind.XSDType()
				}
				p = xml.Property{Name: p.Name, Type: typ}
			}
			found = append(found, p)
		}

		var groups []xml.StatusGroup
		if len(found) > 0 {
			groups = append(groups, xml.StatusGroup{Status: http.StatusOK, Props: found})
		}
		if len(missing) > 0 {
			groups = append(groups, xml.StatusGroup{Status: http.StatusNotFound, Props: missing})
		}
		ms.AddResponse(corepath.URLEncode(base+res.Path()), groups)
	}
	ms.Send(w)
	return xml.StatusMulti
}

func loadDead(ctx *Context, p string) (map[xml.QName]xml.Property, error) {
	if ctx.Location == nil || ctx.Location.Props == nil {
		return nil, nil
	}
	return ctx.Location.Props.Get(p)
}

// http://www.webdav.org/specs/rfc4918.html#METHOD_PROPPATCH
func (s *Dispatcher) doProppatch(ctx *Context, w http.ResponseWriter, r *http.Request) int {
	if !s.checkCanWrite(ctx, ctx.Ref.String()) {
		return s.errorHeader(ctx, w, LockTokenSubmitted(lockRootsAt(ctx, ctx.Ref.String())))
	}

	res, err := ctx.Ref.Lookup()
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}

	in, err := readXMLBody(r)
	if err != nil {
		return s.errorHeader(ctx, w, err)
	}
	req, err := xml.ParsePropPatch(in)
	if err != nil {
		return s.errorHeader(ctx, w, ErrorBadProppatch.WithCause(err))
	}

	// Protected (live) properties can never be PROPPATCHed (§4.5); check
	// the whole request atomically before applying any instruction
	// (§4.5: "all changes succeed or none do").
	for _, op := range req.Ops {
		if isProtected(res, op.Prop.Name) {
			return s.errorHeader(ctx, w, CannotModifyProtected())
		}
	}

	if ctx.Location == nil || ctx.Location.Props == nil {
		return s.errorHeader(ctx, w, ErrorConflict)
	}
	set := map[xml.QName]xml.Property{}
	var removeNames []xml.QName
	for _, op := range req.Ops {
		if op.Remove {
			removeNames = append(removeNames, op.Prop.Name)
			continue
		}
		set[op.Prop.Name] = op.Prop
	}
	if len(removeNames) > 0 {
		if err := ctx.Location.Props.Remove(res.Path(), removeNames); err != nil {
			return s.errorHeader(ctx, w, ErrorConflict.WithCause(err))
		}
	}
	if len(set) > 0 {
		if err := ctx.Location.Props.Set(res.Path(), set, false); err != nil {
			return s.errorHeader(ctx, w, ErrorConflict.WithCause(err))
		}
	}

	ms := xml.NewMultiStatus(r.Header.Get("User-Agent"))
	var names []xml.Property
	for _, op := range req.Ops {
		names = append(names, xml.Property{Name: op.Prop.Name})
	}
	ms.AddResponse(res.Path(), []xml.StatusGroup{{Status: http.StatusOK, Props: names}})
	ms.Send(w)
	return xml.StatusMulti
}

func isProtected(res Resource, name xml.QName) bool {
	if name.IsBuiltin() {
		return true
	}
	_, ok := res.LiveProperty(name)
	return ok
}

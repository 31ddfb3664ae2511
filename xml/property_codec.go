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
	"github.com/beevik/etree"
	"github.com/opendav/core/value"
)

// encodeProperty appends p as a child of parent, allocating a namespace
// prefix via ms.ns if needed and emitting xsi:type/xml:lang as required.
func (ms *MultiStatus) encodeProperty(parent *etree.Element, p Property) {
	tag := p.Name.Local
	if p.Name.Space == NSDAV {
		tag = ms.davTag(p.Name.Local)
	} else if p.Name.Space != "" {
		tag = ms.ns.prefix(p.Name.Space) + ":" + p.Name.Local
	}
	el := parent.CreateElement(tag)
	if p.Name.Space != "" && p.Name.Space != NSDAV {
		el.CreateAttr("xmlns:"+ms.ns.prefix(p.Name.Space), p.Name.Space)
	}

	if p.Err != nil {
		return
	}

	if p.Val.Lang != "" {
		el.CreateAttr("xml:lang", p.Val.Lang)
	}

	typ := p.Type
	if typ == "" && !p.Name.IsBuiltin() && p.Val.Kind != value.Null && p.Val.Kind != value.XML {
		typ = p.Val.Kind.XSDType()
	}
	if typ != "" && !p.Name.IsBuiltin() {
		xs := ms.ns.prefix(NSXS)
		xsi := ms.ns.prefix(NSXSI)
		el.CreateAttr("xmlns:"+xs, NSXS)
		el.CreateAttr("xmlns:"+xsi, NSXSI)
		el.CreateAttr(xsi+":type", typ)
	}

	switch p.Val.Kind {
	case value.Null:
		// empty element
	case value.XML:
		if p.Val.El != nil {
			el.AddChild(p.Val.El.Copy())
		}
	default:
		s, err := p.Val.Marshal(typ)
		if err == nil {
			el.SetText(s)
		}
	}
}

// DecodeElementValue converts an already-parsed element into a Property,
// inferring its type from an explicit xsi:type attribute where present.
// Without xsi:type, an element that has child elements is kept as a copy
// of the XML; an element with text only becomes a String value carrying
// its text and inherited xml:lang, and its other attributes are not kept.
func DecodeElementValue(el *etree.Element) Property {
	name := QName{Local: el.Tag, Space: resolveNS(el, el.Space)}
	p := Property{Name: name}

	lang := findInheritedLang(el)

	if t := findXSIType(el); t != "" {
		v, err := value.Unmarshal(el.Text(), t)
		if err != nil {
			p.Err = err
			return p
		}
		if lang != "" {
			v, _ = v.WithLang(lang)
		}
		p.Type = t
		p.Val = v
		return p
	}

	if len(el.ChildElements()) == 0 {
		v := value.NewString(el.Text())
		if lang != "" {
			v, _ = v.WithLang(lang)
		}
		p.Val = v
		return p
	}

	v := value.NewXML(el.Copy())
	if lang != "" {
		v, _ = v.WithLang(lang)
	}
	p.Val = v
	return p
}

func findXSIType(el *etree.Element) string {
	for _, a := range el.Attr {
		if a.Key == "type" {
			return a.Value
		}
	}
	return ""
}

// findInheritedLang walks up from el looking for the nearest xml:lang,
// per XML's attribute-inheritance rule for that attribute.
func findInheritedLang(el *etree.Element) string {
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if a.Space == "xml" && a.Key == "lang" {
				return a.Value
			}
		}
	}
	return ""
}

// resolveNS walks up from el looking for an "xmlns" (default) or
// "xmlns:prefix" declaration, resolving the namespace URI a bare prefix
// refers to. The teacher's xml package avoided this by treating the
// wire prefix itself as the namespace identifier; doing it properly here
// is what lets arbitrary client namespaces round-trip through the
// property store (§4.12) instead of colliding on reused prefixes.
func resolveNS(el *etree.Element, prefix string) string {
	for e := el; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if prefix == "" && a.Space == "" && a.Key == "xmlns" {
				return a.Value
			}
			if prefix != "" && a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

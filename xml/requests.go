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
	"io"

	"github.com/beevik/etree"
)

// PropFindRequest is the parsed form of a PROPFIND body (§4.4). Exactly
// one of AllProp, PropName or PropertyNames (possibly empty, for an
// explicit empty <prop/>) applies; ParsePropFind rejects a body that
// carries none or more than one of them.
type PropFindRequest struct {
	AllProp, PropName bool
	Include           []QName
	PropertyNames     []QName
}

// ParsePropFind parses a PROPFIND request body. An empty body (PROPFIND
// with no entity, a common client shorthand) is treated as an allprop
// request.
func ParsePropFind(in io.Reader) (PropFindRequest, error) {
	req := PropFindRequest{}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(in); err != nil {
		if err == io.EOF {
			req.AllProp = true
			return req, nil
		}
		return req, err
	}
	root := doc.Root()
	if root == nil {
		req.AllProp = true
		return req, nil
	}

	seen := 0
	for _, child := range root.ChildElements() {
		switch child.Tag {
		case "allprop":
			req.AllProp = true
			seen++
		case "propname":
			req.PropName = true
			seen++
		case "prop":
			seen++
			for _, pc := range child.ChildElements() {
				req.PropertyNames = append(req.PropertyNames, QName{
					Space: resolveNS(pc, pc.Space), Local: pc.Tag,
				})
			}
		case "include":
			for _, pc := range child.ChildElements() {
				req.Include = append(req.Include, QName{
					Space: resolveNS(pc, pc.Space), Local: pc.Tag,
				})
			}
		}
	}
	if seen != 1 {
		return req, fmt.Errorf("xml: propfind body must have exactly one of allprop, propname, prop, got %d", seen)
	}
	return req, nil
}

// PropPatchOp is one instruction in a PROPPATCH body, in the order the
// client submitted it (§4.5: "preserve instruction order when reporting").
type PropPatchOp struct {
	Remove bool
	Prop   Property
}

// PropPatchRequest is the ordered list of set/remove instructions parsed
// from a PROPPATCH body.
type PropPatchRequest struct {
	Ops []PropPatchOp
}

// ParsePropPatch parses a PROPPATCH request body.
func ParsePropPatch(in io.Reader) (PropPatchRequest, error) {
	req := PropPatchRequest{}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(in); err != nil {
		return req, err
	}
	root := doc.Root()
	if root == nil || root.Tag != "propertyupdate" {
		return req, fmt.Errorf("xml: proppatch body must be a propertyupdate element")
	}

	for _, instr := range root.ChildElements() {
		var remove bool
		switch instr.Tag {
		case "set":
			remove = false
		case "remove":
			remove = true
		default:
			continue
		}
		propEl := instr.SelectElement("prop")
		if propEl == nil {
			continue
		}
		for _, pc := range propEl.ChildElements() {
			req.Ops = append(req.Ops, PropPatchOp{
				Remove: remove,
				Prop:   DecodeElementValue(pc),
			})
		}
	}
	return req, nil
}

// LockInfo is the parsed form of a LOCK request body (§4.10). Shared is
// false for an exclusive lock. A zero value with Refresh set means the
// request carried no body — a refresh of the lock named via If.
type LockInfo struct {
	Shared  bool
	Owner   *etree.Element // copy of the <owner> element itself, nil if absent
	Refresh bool
}

// ParseLock parses a LOCK request body.
func ParseLock(in io.Reader) (LockInfo, error) {
	req := LockInfo{}

	doc := etree.NewDocument()
	n, err := doc.ReadFrom(in)
	if err != nil {
		return req, err
	}
	if n == 0 {
		req.Refresh = true
		return req, nil
	}
	root := doc.Root()
	if root == nil || root.Tag != "lockinfo" {
		return req, fmt.Errorf("xml: lock body must be a lockinfo element")
	}

	scope := root.SelectElement("lockscope")
	if scope == nil {
		return req, fmt.Errorf("xml: lockinfo missing lockscope")
	}
	switch {
	case scope.SelectElement("exclusive") != nil:
		req.Shared = false
	case scope.SelectElement("shared") != nil:
		req.Shared = true
	default:
		return req, fmt.Errorf("xml: lockscope must be exclusive or shared")
	}

	ltype := root.SelectElement("locktype")
	if ltype == nil || ltype.SelectElement("write") == nil {
		return req, fmt.Errorf("xml: locktype must be write")
	}

	if owner := root.SelectElement("owner"); owner != nil {
		req.Owner = owner.Copy()
	}
	return req, nil
}

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
	"net/http"

	"github.com/beevik/etree"

	"github.com/opendav/core/xml"
)

// http://www.webdav.org/specs/rfc4918.html#status.code.extensions.to.http11
const (
	StatusMulti               = xml.StatusMulti
	StatusUnprocessableEntity = xml.StatusUnprocessableEntity
	StatusLocked              = xml.StatusLocked
	StatusFailedDependency    = xml.StatusFailedDependency
	StatusInsufficientStorage = xml.StatusInsufficientStorage
)

// Precondition/postcondition element names (§6.4), all in the DAV:
// namespace.
const (
	PreconditionLockTokenSubmitted       = "lock-token-submitted"
	PreconditionNoConflictingLock        = "no-conflicting-lock"
	PreconditionLockTokenMatchesReqURI   = "lock-token-matches-request-uri"
	PreconditionCannotModifyProtected    = "cannot-modify-protected-property"
	PreconditionPreservedLiveProperties  = "preserved-live-properties"
	PreconditionPropfindFiniteDepth      = "propfind-finite-depth"
	PreconditionNoExternalEntities       = "no-external-entities"
)

// Condition is the structured condition code of §7: an HTTP status plus
// an optional WebDAV precondition/postcondition element name (§6.4) and
// offending hrefs, and an optional human-readable message. It is the
// direct descendant of the teacher's Error struct, generalized to carry
// the XML payload the dispatcher needs to write a <DAV:error> element.
type Condition struct {
	code    int
	text    string
	cause   error
	element string   // DAV: precondition element local name, or ""
	hrefs   []string // offending resource hrefs for the element, if any
}

// Error codes reportable from the core, matching the teacher's variable
// names where a direct descendant exists.
var (
	ErrorNotYetImplemented = Condition{code: http.StatusNotImplemented, text: "NotYetImplemented"}
	ErrorBadPath           = Condition{code: http.StatusBadRequest, text: "BadPath"}
	ErrorNotFound          = Condition{code: http.StatusNotFound, text: "NotFound"}
	ErrorConflict          = Condition{code: http.StatusConflict, text: "Conflict"}
	ErrorNotAllowed        = Condition{code: http.StatusMethodNotAllowed, text: "NotAllowed"}
	ErrorUnsupportedType   = Condition{code: http.StatusUnsupportedMediaType, text: "UnsupportedType"}
	ErrorIsDir             = Condition{code: http.StatusMethodNotAllowed, text: "IsDir"}
	ErrorIsNotDir          = Condition{code: http.StatusMethodNotAllowed, text: "IsNotDir"}
	ErrorMissingParent     = Condition{code: http.StatusConflict, text: "MissingParent"}
	ErrorUnderrun          = Condition{code: http.StatusBadRequest, text: "Underrun"}
	ErrorBadHost           = Condition{code: http.StatusBadGateway, text: "BadHost"}
	ErrorBadDepth          = Condition{code: http.StatusBadRequest, text: "BadDepth"}
	ErrorBadDest           = Condition{code: http.StatusBadRequest, text: "BadDest"}
	ErrorBadPropfind       = Condition{code: http.StatusBadRequest, text: "BadPropfind"}
	ErrorDestExists        = Condition{code: http.StatusPreconditionFailed, text: "DestExists"}
	ErrorSameFile          = Condition{code: http.StatusForbidden, text: "SameFile"}
	ErrorBadProppatch      = Condition{code: http.StatusBadRequest, text: "BadProppatch"}
	ErrorBadLock           = Condition{code: http.StatusBadRequest, text: "BadLock"}
	ErrorForbidden         = Condition{code: http.StatusForbidden, text: "Forbidden"}
	ErrorNotAcceptable     = Condition{code: http.StatusNotAcceptable, text: "NotAcceptable"}
	ErrorUnprocessable     = Condition{code: StatusUnprocessableEntity, text: "Unprocessable"}
	ErrorInsufficientStore = Condition{code: StatusInsufficientStorage, text: "InsufficientStorage"}

	ErrorLocked = Condition{code: StatusLocked, text: "Locked", element: PreconditionNoConflictingLock}
)

// LockTokenSubmitted builds the 423 Locked / DAV:lock-token-submitted
// condition of §4.3's lock-token-submission rule, naming the offending
// lock roots.
func LockTokenSubmitted(roots []string) Condition {
	return Condition{
		code:    StatusLocked,
		text:    "LockTokenNotSubmitted",
		element: PreconditionLockTokenSubmitted,
		hrefs:   roots,
	}
}

// NoConflictingLock builds the 423 Locked / DAV:no-conflicting-lock
// condition of §4.10, naming the conflicting lock's root.
func NoConflictingLock(root string) Condition {
	return Condition{
		code:    StatusLocked,
		text:    "ConflictingLock",
		element: PreconditionNoConflictingLock,
		hrefs:   []string{root},
	}
}

// CannotModifyProtected builds the 403 / DAV:cannot-modify-protected-property
// condition of §4.5.
func CannotModifyProtected() Condition {
	return Condition{code: http.StatusForbidden, text: "ProtectedProperty", element: PreconditionCannotModifyProtected}
}

// PropfindFiniteDepth builds the 403 / DAV:propfind-finite-depth condition
// of §4.4.
func PropfindFiniteDepth() Condition {
	return Condition{code: http.StatusForbidden, text: "PropfindFiniteDepth", element: PreconditionPropfindFiniteDepth}
}

// NoExternalEntities builds the 400 / DAV:no-external-entities condition
// of §4.2's XML parsing safety rule.
func NoExternalEntities() Condition {
	return Condition{code: http.StatusBadRequest, text: "ExternalEntity", element: PreconditionNoExternalEntities}
}

// WithCause chains an internal cause onto a reported condition. The
// dispatcher logs the cause and never writes it into the response; it has
// no switch that shows causes to clients.
func (e Condition) WithCause(cause error) Condition {
	e.cause = cause
	return e
}

// HTTPCode returns the HTTP status code for the condition.
func (e Condition) HTTPCode() int { return e.code }

// HTTPStatus returns the canonical reason phrase, including WebDAV
// extension codes (§6.3).
func (e Condition) HTTPStatus() string { return xml.ReasonPhrase(e.code) }

// InternalCause returns the underlying cause. The dispatcher only logs
// it; it is not sent to clients.
func (e Condition) InternalCause() error { return e.cause }

// XMLElement builds the <DAV:error> payload for this condition, or nil
// if it carries no precondition element (§4.13).
func (e Condition) XMLElement() *etree.Element {
	if e.element == "" {
		return nil
	}
	el := etree.NewElement(e.element)
	el.CreateAttr("xmlns", xml.NSDAV)
	for _, h := range e.hrefs {
		el.CreateElement("href").SetText(h)
	}
	return el
}

func (e Condition) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %s (%s)", e.code, e.HTTPStatus(), e.text, e.cause)
	}
	return fmt.Sprintf("%d %s: %s", e.code, e.HTTPStatus(), e.text)
}

func (e Condition) String() string { return e.Error() }

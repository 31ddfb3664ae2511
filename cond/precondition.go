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

package cond

import (
	"net/http"
	"time"

	"github.com/opendav/core/etag"
)

// Outcome is the plain-precondition evaluator's verdict: either "proceed"
// (Status == 0) or a concrete HTTP status the caller must write instead of
// running the handler.
type Outcome struct {
	Status int
}

// Proceed is the zero Outcome meaning "all preconditions satisfied".
var Proceed = Outcome{}

// ResourceState is everything the plain-precondition evaluator needs to
// know about the current state of the target resource.
type ResourceState struct {
	ETag    etag.ETag
	Exists  bool
	Modtime time.Time
}

// EvaluatePlain runs the §4.3 "plain HTTP preconditions" in RFC 7232
// order: If-Match, If-Unmodified-Since, If-None-Match, If-Modified-Since,
// If-Range is intentionally excluded here — it doesn't fail the request,
// it only gates whether Range is honored, and is evaluated by the GET/HEAD
// handler directly via IfRangeSatisfied.
//
// method is the HTTP method of the request; it controls both the entity-tag
// comparison strength (strong for mutating methods, weak for GET/HEAD) and
// the outcome of a satisfied If-None-Match (304 for GET/HEAD, 412 otherwise).
func EvaluatePlain(h http.Header, method string, rs ResourceState) Outcome {
	safe := method == http.MethodGet || method == http.MethodHead

	if v := h.Get("If-Match"); v != "" {
		tags, any, err := etag.ParseList(v)
		if err != nil {
			return Outcome{Status: http.StatusBadRequest}
		}
		if !rs.Exists || !etag.MatchStrong(rs.ETag, tags, any) {
			return Outcome{Status: http.StatusPreconditionFailed}
		}
	}

	if v := h.Get("If-Unmodified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			if !rs.Exists || rs.Modtime.After(t) {
				return Outcome{Status: http.StatusPreconditionFailed}
			}
		}
	}

	if v := h.Get("If-None-Match"); v != "" {
		tags, any, err := etag.ParseList(v)
		if err != nil {
			return Outcome{Status: http.StatusBadRequest}
		}
		var matched bool
		if safe {
			matched = rs.Exists && etag.MatchWeak(rs.ETag, tags, any)
		} else {
			matched = rs.Exists && etag.MatchStrong(rs.ETag, tags, any)
		}
		if matched {
			if safe {
				return Outcome{Status: http.StatusNotModified}
			}
			return Outcome{Status: http.StatusPreconditionFailed}
		}
	} else if v := h.Get("If-Modified-Since"); v != "" && safe {
		if t, err := http.ParseTime(v); err == nil {
			if rs.Exists && !rs.Modtime.After(t) {
				return Outcome{Status: http.StatusNotModified}
			}
		}
	}

	return Proceed
}

// IfRangeSatisfied evaluates the If-Range header (§4.6): range processing
// proceeds (returns true) only if the header is absent, or names either
// the resource's current strong entity tag or a date on/after its
// modification time.
func IfRangeSatisfied(h http.Header, rs ResourceState) bool {
	v := h.Get("If-Range")
	if v == "" {
		return true
	}
	if t, err := etag.Parse(v); err == nil {
		return rs.Exists && rs.ETag.StrongEqual(t)
	}
	if t, err := http.ParseTime(v); err == nil {
		return rs.Exists && !rs.Modtime.After(t)
	}
	return false
}

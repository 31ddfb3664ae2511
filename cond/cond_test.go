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
	"testing"

	"github.com/opendav/core/etag"
)

func TestParse(t *testing.T) {
	examples := map[string]bool{
		"foobar":                false,
		"(a":                    false,
		"([b":                   false,
		"(Not a":                false,
		"":                      true,
		"(a)":                   true,
		"(a) (b)":               true,
		"(Not a Not b Not [d])": true,
		"(Not a) (Not b)":       true,
		"([a])":                 true,
	}

	for s, exp := range examples {
		o, err := ParseIfTag(s)
		ok := err == nil
		if exp != ok {
			t.Errorf("%q did not parse as expected, got [%+v]: %v", s, o, err)
		}
	}
}

type fakeEnv struct {
	etags  map[string]etag.ETag
	locked map[string]bool
}

func (e fakeEnv) ETag(r string) etag.ETag {
	return e.etags[r]
}

func (e fakeEnv) Locked(r, l string) bool {
	return e.locked[r+"|"+l]
}

func TestTaggedListScopesToResourceNotDefault(t *testing.T) {
	tag, err := ParseIfTag(`</a/b> (<opaquelocktoken:tok1>)`)
	if err != nil {
		t.Fatal(err)
	}
	env := fakeEnv{locked: map[string]bool{"/a/b|opaquelocktoken:tok1": true}}
	if !tag.Eval(env, "/a/b") {
		t.Error("expected list to evaluate true for its own tagged resource")
	}
	if tag.EvalResource(env, "/a/c", "/a/b") {
		t.Error("a tagged list must not apply to an unrelated resource")
	}
}

func TestGetSingleState(t *testing.T) {
	tag, err := ParseIfTag(`(<opaquelocktoken:abc>)`)
	if err != nil {
		t.Fatal(err)
	}
	tok, ok := tag.GetSingleState()
	if !ok || tok != "opaquelocktoken:abc" {
		t.Errorf("got %q, %v", tok, ok)
	}

	multi, _ := ParseIfTag(`(<opaquelocktoken:a> <opaquelocktoken:b>)`)
	if _, ok := multi.GetSingleState(); ok {
		t.Error("more than one condition should not yield a single state")
	}
}

func TestGetAllTokens(t *testing.T) {
	tag, err := ParseIfTag(`(<opaquelocktoken:a>) (Not <opaquelocktoken:b>)`)
	if err != nil {
		t.Fatal(err)
	}
	toks := tag.GetAllTokens()
	if len(toks) != 2 {
		t.Errorf("expected 2 tokens regardless of negation, got %v", toks)
	}
}

func TestEntityTagCondition(t *testing.T) {
	tag, err := ParseIfTag(`(["v1"])`)
	if err != nil {
		t.Fatal(err)
	}
	env := fakeEnv{etags: map[string]etag.ETag{"/a": etag.New("v1")}}
	if !tag.Eval(env, "/a") {
		t.Error("expected etag condition to match")
	}

	env2 := fakeEnv{etags: map[string]etag.ETag{"/a": etag.New("v2")}}
	if tag.Eval(env2, "/a") {
		t.Error("did not expect etag condition to match a different etag")
	}
}

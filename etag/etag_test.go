package etag

import "testing"

func TestStrongWeakEqual(t *testing.T) {
	s := New("abc")
	if !s.StrongEqual(s) {
		t.Error("strong tag should strong-equal itself")
	}
	if !s.WeakEqual(s) {
		t.Error("weak-equal should always hold for equal tokens")
	}

	w := NewWeak("abc")
	if w.StrongEqual(w) {
		t.Error("weak tag should never strong-equal itself")
	}
	if !w.WeakEqual(w) {
		t.Error("weak-equal should hold regardless of the weak flag")
	}
}

func TestParseAndString(t *testing.T) {
	tag, err := Parse(`W/"v2"`)
	if err != nil {
		t.Fatal(err)
	}
	if !tag.Weak || tag.Token != "v2" {
		t.Errorf("got %+v", tag)
	}
	if tag.String() != `W/"v2"` {
		t.Errorf("String() = %q", tag.String())
	}
}

func TestParseList(t *testing.T) {
	tags, any, err := ParseList(`"a", W/"b", "c"`)
	if err != nil {
		t.Fatal(err)
	}
	if any {
		t.Fatal("should not be wildcard")
	}
	if len(tags) != 3 {
		t.Fatalf("got %d tags", len(tags))
	}

	_, any, err = ParseList("*")
	if err != nil || !any {
		t.Fatalf("wildcard parse failed: any=%v err=%v", any, err)
	}
}

func TestMatch(t *testing.T) {
	tags, _, _ := ParseList(`"v1", "v2"`)
	if !MatchStrong(New("v2"), tags, false) {
		t.Error("expected strong match on v2")
	}
	if MatchStrong(New("v3"), tags, false) {
		t.Error("did not expect strong match on v3")
	}
	if !MatchWeak(NewWeak("v1"), tags, false) {
		t.Error("expected weak match on v1")
	}
}

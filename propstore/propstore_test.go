package propstore

import (
	"os"
	"testing"

	"github.com/opendav/core/value"
	"github.com/opendav/core/xml"
)

func TestMemStoreSetGetRemove(t *testing.T) {
	s := NewMemStore()
	q := xml.QName{Space: "http://example.com/", Local: "author"}
	err := s.Set("/a", map[xml.QName]xml.Property{q: {Name: q, Val: value.NewString("me")}}, false)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("/a")
	if err != nil {
		t.Fatal(err)
	}
	if got[q].Val.S != "me" {
		t.Fatalf("got %+v", got[q])
	}
	if err := s.Remove("/a", []xml.QName{q}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get("/a")
	if _, ok := got[q]; ok {
		t.Error("expected property to be removed")
	}
}

func TestMemStoreClearRecursive(t *testing.T) {
	s := NewMemStore()
	q := xml.QName{Space: "http://example.com/", Local: "author"}
	s.Set("/a/b", map[xml.QName]xml.Property{q: {Name: q, Val: value.NewString("me")}}, false)
	s.Clear("/a", true)
	got, _ := s.Get("/a/b")
	if len(got) != 0 {
		t.Error("expected recursive clear to remove descendant properties")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	q := xml.QName{Space: "http://example.com/", Local: "author"}
	prop := xml.Property{Name: q, Type: "xs:string", Val: value.NewString("me")}
	if err := s.Set("/a", map[xml.QName]xml.Property{q: prop}, false); err != nil {
		t.Fatal(err)
	}

	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s2.Get("/a")
	if err != nil {
		t.Fatal(err)
	}
	if got[q].Val.S != "me" {
		t.Fatalf("round trip failed: %+v", got[q])
	}
}

func TestFileStoreClearRecursive(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	q := xml.QName{Local: "x"}
	s.Set("/a/b", map[xml.QName]xml.Property{q: {Name: q, Val: value.NewString("v")}}, false)
	if err := s.Clear("/a", true); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != "" && len(e.Name()) > 0 && e.Name()[len(e.Name())-5:] == ".toml" {
			t.Errorf("expected no remaining toml files, found %s", e.Name())
		}
	}
}

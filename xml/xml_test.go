package xml

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opendav/core/value"
)

func TestMultiStatusBasicPropfind(t *testing.T) {
	ms := NewMultiStatus("some-client/1.0")
	ms.AddResponse("/a/", []StatusGroup{
		{
			Status: 200,
			Props: []Property{
				{Name: QName{Space: NSDAV, Local: "displayname"}, Val: value.NewString("A")},
				{Name: QName{Space: NSDAV, Local: "resourcetype"}},
			},
		},
	})
	rec := httptest.NewRecorder()
	if err := ms.Send(rec); err != nil {
		t.Fatal(err)
	}
	if rec.Code != 207 {
		t.Fatalf("got status %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<href>/a/</href>") {
		t.Errorf("missing href: %s", body)
	}
	if !strings.Contains(body, "displayname") {
		t.Errorf("missing displayname: %s", body)
	}
}

func TestMultiStatusMiniRedirectorPrefix(t *testing.T) {
	ms := NewMultiStatus("Microsoft-WebDAV-MiniRedir/6.1.7600")
	ms.AddResponse("/a", nil)
	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	ms.Send(rec)
	buf.Write(rec.Body.Bytes())
	if !strings.Contains(buf.String(), "xmlns:D=\"DAV:\"") {
		t.Errorf("expected explicit D: prefix, got %s", buf.String())
	}
}

func TestParsePropFindAllProp(t *testing.T) {
	body := `<?xml version="1.0"?><propfind xmlns="DAV:"><allprop/></propfind>`
	req, err := ParsePropFind(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if !req.AllProp {
		t.Error("expected AllProp")
	}
}

func TestParsePropFindEmptyBodyDefaultsAllProp(t *testing.T) {
	req, err := ParsePropFind(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !req.AllProp {
		t.Error("expected AllProp for empty body")
	}
}

func TestParsePropFindNamedProps(t *testing.T) {
	body := `<propfind xmlns="DAV:"><prop><getetag/><displayname/></prop></propfind>`
	req, err := ParsePropFind(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(req.PropertyNames) != 2 {
		t.Fatalf("got %v", req.PropertyNames)
	}
}

func TestParsePropPatch(t *testing.T) {
	body := `<propertyupdate xmlns="DAV:" xmlns:x="http://example.com/">
<set><prop><x:author>me</x:author></prop></set>
<remove><prop><x:gone/></prop></remove>
</propertyupdate>`
	req, err := ParsePropPatch(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Ops) != 2 {
		t.Fatalf("got %d ops", len(req.Ops))
	}
	if req.Ops[0].Remove || req.Ops[0].Prop.Name.Local != "author" {
		t.Errorf("got %+v", req.Ops[0])
	}
	if !req.Ops[1].Remove || req.Ops[1].Prop.Name.Local != "gone" {
		t.Errorf("got %+v", req.Ops[1])
	}
}

func TestParseLockExclusive(t *testing.T) {
	body := `<lockinfo xmlns="DAV:">
<lockscope><exclusive/></lockscope>
<locktype><write/></locktype>
<owner><href>http://example.com/me</href></owner>
</lockinfo>`
	req, err := ParseLock(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if req.Shared {
		t.Error("expected exclusive")
	}
	if req.Owner == nil {
		t.Error("expected owner element")
	}
}

func TestParseLockRefreshEmptyBody(t *testing.T) {
	req, err := ParseLock(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !req.Refresh {
		t.Error("expected refresh for empty body")
	}
}

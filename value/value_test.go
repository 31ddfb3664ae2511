package value

import (
	"testing"
	"time"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	cases := []struct {
		typ string
		v   Value
	}{
		{"xs:int", NewInt64(-42)},
		{"xs:unsignedLong", NewUint64(42)},
		{"xs:boolean", NewBool(true)},
		{"xs:string", NewString("hello")},
		{"xs:base64Binary", NewBytes([]byte("hi"))},
		{"xs:dateTime", NewTime(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))},
		{"xs:date", NewDate(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))},
	}
	for _, c := range cases {
		s, err := c.v.Marshal(c.typ)
		if err != nil {
			t.Fatalf("%s: marshal: %v", c.typ, err)
		}
		got, err := Unmarshal(s, c.typ)
		if err != nil {
			t.Fatalf("%s: unmarshal %q: %v", c.typ, s, err)
		}
		s2, err := got.Marshal(c.typ)
		if err != nil {
			t.Fatalf("%s: remarshal: %v", c.typ, err)
		}
		if s2 != s {
			t.Errorf("%s: round trip mismatch: %q vs %q", c.typ, s, s2)
		}
	}
}

func TestHexBinary(t *testing.T) {
	v := NewBytes([]byte{0xde, 0xad, 0xbe, 0xef})
	s, err := v.Marshal("xs:hexBinary")
	if err != nil {
		t.Fatal(err)
	}
	if s != "deadbeef" {
		t.Errorf("got %q", s)
	}
}

func TestDuration(t *testing.T) {
	d, err := Unmarshal("PT1H30M", "xs:duration")
	if err != nil {
		t.Fatal(err)
	}
	if d.Dur != 90*time.Minute {
		t.Errorf("got %v", d.Dur)
	}
}

func TestWithLangRejectsInvalid(t *testing.T) {
	v := NewString("bonjour")
	if _, err := v.WithLang("not a tag!!"); err == nil {
		t.Error("expected invalid xml:lang to be rejected")
	}
	v2, err := v.WithLang("fr")
	if err != nil || v2.Lang != "fr" {
		t.Errorf("got %+v, %v", v2, err)
	}
}

package byterange

import (
	"reflect"
	"testing"
)

func TestParseBasic(t *testing.T) {
	rs, err := Parse("bytes=0-99,200-299", 1000)
	if err != nil {
		t.Fatal(err)
	}
	want := []Range{{0, 99}, {200, 299}}
	if !reflect.DeepEqual(rs, want) {
		t.Errorf("got %v want %v", rs, want)
	}
}

func TestParseOpenAndSuffix(t *testing.T) {
	rs, err := Parse("bytes=900-", 1000)
	if err != nil || !reflect.DeepEqual(rs, []Range{{900, 999}}) {
		t.Fatalf("open range: %v %v", rs, err)
	}

	rs, err = Parse("bytes=-100", 1000)
	if err != nil || !reflect.DeepEqual(rs, []Range{{900, 999}}) {
		t.Fatalf("suffix range: %v %v", rs, err)
	}
}

func TestParseInvalidIgnoredSilently(t *testing.T) {
	rs, err := Parse("bytes=foo-bar", 1000)
	if err != nil || rs != nil {
		t.Fatalf("invalid header should be silently ignored, got %v %v", rs, err)
	}
}

func TestParseUnsatisfiable(t *testing.T) {
	_, err := Parse("bytes=5000-6000", 1000)
	if err == nil {
		t.Fatal("expected unsatisfiable error")
	}
}

func TestMergeOverlapAndAbut(t *testing.T) {
	in := []Range{{0, 10}, {5, 20}, {21, 30}, {50, 60}}
	got := Merge(in)
	want := []Range{{0, 30}, {50, 60}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestMergeIdempotent(t *testing.T) {
	in := []Range{{10, 20}, {0, 5}, {6, 9}}
	once := Merge(in)
	twice := Merge(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent: %v vs %v", once, twice)
	}
}

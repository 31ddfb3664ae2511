package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIncrementsCounter(t *testing.T) {
	Requests.Reset()
	Observe("PROPFIND", 207, time.Now().Add(-10*time.Millisecond))

	got := testutil.ToFloat64(Requests.WithLabelValues("PROPFIND", "207"))
	if got != 1 {
		t.Fatalf("counter = %v, want 1", got)
	}
}

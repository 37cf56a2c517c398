package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestObserver(t *testing.T) (*ShareObserver, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	o, err := NewShareObserver("test", reg)
	if err != nil {
		t.Fatalf("NewShareObserver: %v", err)
	}
	return o, reg
}

func TestShareFinished(t *testing.T) {
	o, _ := newTestObserver(t)

	o.ShareStarted()
	o.ShareStarted()
	if got := testutil.ToFloat64(o.sharesInFlight); got != 2 {
		t.Errorf("in flight = %v, want 2", got)
	}

	o.ShareFinished("azure", "gif", 2048, 1500*time.Millisecond, nil)
	o.ShareFinished("azure", "gif", 4096, time.Second, errors.New("403"))

	if got := testutil.ToFloat64(o.sharesInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(o.sharesTotal.WithLabelValues("azure", "gif", "completed")); got != 1 {
		t.Errorf("completed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.sharesTotal.WithLabelValues("azure", "gif", "failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.uploadedBytes.WithLabelValues("azure")); got != 2048 {
		t.Errorf("uploaded bytes = %v, want 2048", got)
	}
	if n := testutil.CollectAndCount(o.shareDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestObserveRequest(t *testing.T) {
	o, _ := newTestObserver(t)

	o.ObserveRequest("GET", "/api/jobs/{id}", 200, 10*time.Millisecond)
	o.ObserveRequest("GET", "/api/jobs/{id}", 404, 5*time.Millisecond)

	if got := testutil.ToFloat64(o.requestsTotal.WithLabelValues("GET", "/api/jobs/{id}", "404")); got != 1 {
		t.Errorf("404 count = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(o.requestsTotal); n != 2 {
		t.Errorf("request series = %d, want 2", n)
	}
}

func TestNewShareObserverTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewShareObserver("test", reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewShareObserver("test", reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	first.ShareStarted()
	if got := testutil.ToFloat64(second.sharesInFlight); got != 1 {
		t.Errorf("second observer does not share collectors: in flight = %v", got)
	}
}

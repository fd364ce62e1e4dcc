package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func populated() fakeSource {
	return fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess:    7,
				goIdentity.MetricDeliveryFailure: 1,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func TestCollectNothingWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters:   map[goIdentity.MetricID]uint64{},
			Histograms: map[goIdentity.MetricID][]uint64{},
		},
	})
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no metrics, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(populated())

	expected := `
# HELP identity_login_success_total Successful logins.
# TYPE identity_login_success_total counter
identity_login_success_total 7
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "identity_login_success_total"); err != nil {
		t.Fatalf("unexpected login counter: %v", err)
	}

	reg := prometheus.NewPedanticRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Register(reg); err != nil {
		t.Fatalf("second register should be tolerated: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sawHistogram, sawDropped bool
	for _, mf := range families {
		switch mf.GetName() {
		case "identity_validate_latency_seconds":
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 36 {
				t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
			}
			if got := h.GetBucket()[0].GetCumulativeCount(); got != 1 {
				t.Fatalf("expected first bucket 1, got %d", got)
			}
			sawHistogram = true
		case "identity_audit_dropped_total":
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 2 {
				t.Fatalf("expected 2 dropped, got %v", v)
			}
			sawDropped = true
		}
	}
	if !sawHistogram || !sawDropped {
		t.Fatalf("missing families: histogram=%v dropped=%v", sawHistogram, sawDropped)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	h := NewCollectorFromSource(populated()).Handler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "identity_delivery_failure_total 1") {
		t.Fatalf("expected delivery failure counter, got:\n%s", body)
	}
	if !strings.Contains(body, `identity_validate_latency_seconds_bucket{le="+Inf"} 36`) {
		t.Fatalf("expected +Inf bucket, got:\n%s", body)
	}
}

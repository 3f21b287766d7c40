package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	gateway "github.com/guardian/gateway-sub002"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot gateway.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() gateway.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                     { return f.dropped }

func scrape(t *testing.T, src metricsSource) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(src).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("reading scrape body: %v", err)
	}
	return string(body)
}

func TestScrapeIncludesCounters(t *testing.T) {
	src := &fakeSource{
		snapshot: gateway.MetricsSnapshot{
			Counters: map[gateway.MetricID]uint64{
				gateway.MetricSignInSuccess:    7,
				gateway.MetricPasscodeExpired:  2,
				gateway.MetricRegisterRerouted: 1,
			},
		},
		dropped: 4,
	}

	out := scrape(t, src)
	for _, want := range []string{
		"gateway_signin_success_total 7",
		"gateway_passcode_expired_total 2",
		"gateway_register_rerouted_total 1",
		"gateway_audit_dropped_total 4",
		"# TYPE gateway_signin_success_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("scrape output missing %q:\n%s", want, out)
		}
	}
}

// Counters missing from the snapshot still appear, at zero, so dashboards
// never see gaps between scrapes.
func TestScrapeReportsZeroForIdleCounters(t *testing.T) {
	src := &fakeSource{snapshot: gateway.MetricsSnapshot{Counters: map[gateway.MetricID]uint64{}}}
	out := scrape(t, src)
	if !strings.Contains(out, "gateway_signin_success_total 0") {
		t.Fatalf("idle counter not reported:\n%s", out)
	}
}

func TestCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollectorFromSource(&fakeSource{})); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	// Every engine counter plus the audit drop counter.
	want := 27
	if len(families) != want {
		t.Fatalf("gathered %d metric families, want %d", len(families), want)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	src := &fakeSource{
		snapshot: gateway.MetricsSnapshot{
			Counters: map[gateway.MetricID]uint64{gateway.MetricSignInFailure: 5},
		},
	}

	rec := httptest.NewRecorder()
	Handler(src).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	if !strings.Contains(rec.Body.String(), "gateway_signin_failure_total 5") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}

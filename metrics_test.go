package bonito

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kayac/Bonito/fcmv1"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsIncError(t *testing.T) {
	m := NewMetrics(nil)

	m.IncError(fcmv1.NewServerError(fcmv1.ClassifyError(404, "gone")))
	m.IncError(fcmv1.NewServerError(fcmv1.ClassifyError(404, "gone again")))
	m.IncError(fcmv1.ErrTimeout)
	m.IncError(fmt.Errorf("plain"))

	for _, c := range []struct {
		kind, status string
		expected     float64
	}{
		{"server", "UNREGISTERED", 2},
		{"timeout", "", 1},
		{"unknown", "", 1},
		{"auth", "", 0},
	} {
		if v := testutil.ToFloat64(m.errors.WithLabelValues(c.kind, c.status)); v != c.expected {
			t.Errorf("errors_total{kind=%s,status=%s} expected %v but got %v", c.kind, c.status, c.expected, v)
		}
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(nil)
	m.IncRequests(3)
	m.IncSent()
	m.ObserveResponseTime(time.Millisecond * 120)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	b, _ := ioutil.ReadAll(w.Body)
	for _, s := range []string{
		"bonito_requests_total 3",
		"bonito_sent_total 1",
		"bonito_response_time_seconds_count 1",
	} {
		if !strings.Contains(string(b), s) {
			t.Errorf("metrics must contain %q", s)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.IncRequests(1)
	m.IncSent()
	m.IncError(fcmv1.ErrAuth)
	m.ObserveResponseTime(time.Second)
}

func TestStatsCountError(t *testing.T) {
	st := NewStats()
	st.countError(fcmv1.ErrAuth)
	st.countError(fcmv1.ErrDeserialization)
	st.countError(fcmv1.NewServerError(fcmv1.ClassifyError(429, "slow down")))
	st.countError(fcmv1.NewServerError(fcmv1.ClassifyError(418, "teapot")))
	st.countError(fmt.Errorf("plain"))

	s := st.Snapshot()
	if s.ErrCount != 5 {
		t.Errorf("Expected err_count is 5 but got %d", s.ErrCount)
	}
	expected := map[string]int64{
		"auth":              1,
		"deserialization":   1,
		"QUOTA_EXCEEDED":    1,
		"UNSPECIFIED_ERROR": 1,
	}
	if len(s.ErrCounts) != len(expected) {
		t.Errorf("unexpected err_counts: %v", s.ErrCounts)
	}
	for k, v := range expected {
		if s.ErrCounts[k] != v {
			t.Errorf("Expected err_counts.%s is %d but got %d", k, v, s.ErrCounts[k])
		}
	}
}

func TestErrorStatLabel(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < errorStatSize; i++ {
		l := errorStatLabel(i)
		if l == "" || seen[l] {
			t.Errorf("label %d must be unique and not empty: %q", i, l)
		}
		seen[l] = true
	}
	for _, code := range fcmv1.ErrorCodes {
		e := fcmv1.NewServerError(fcmv1.ServerError{Code: code})
		if l := errorStatLabel(errorStatIndex(e)); l != code.Status() {
			t.Errorf("Expected label %s but got %s", code.Status(), l)
		}
	}
}

func TestProviderMetricsRoute(t *testing.T) {
	prov := &Provider{}
	if c := serve(prov.Handler(), "/metrics"); c != 404 {
		t.Errorf("/metrics must not be routed without metrics: %d", c)
	}

	srvMetrics = NewMetrics(nil)
	defer func() { srvMetrics = nil }()
	if c := serve(prov.Handler(), "/metrics"); c != 200 {
		t.Errorf("Expected status code is 200 but got %d", c)
	}
}

func serve(h http.Handler, path string) int {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w.Code
}

func TestErrorStatSize(t *testing.T) {
	if g, w := errorStatSize, int(fcmv1.KindServer)+len(fcmv1.ErrorCodes); g != w {
		t.Errorf("errorStatSize must be %d but got %d", w, g)
	}
}

func TestStatsCountUnknownError(t *testing.T) {
	st := NewStats()
	st.countError(fcmv1.NewServerError(fcmv1.ServerError{Code: fcmv1.ErrorCode(len(fcmv1.ErrorCodes))}))
	st.countError(fcmv1.NewServerError(fcmv1.ServerError{Code: fcmv1.ErrorCode(-1)}))
	st.countError(fcmv1.Error{Kind: fcmv1.Kind(42), Server: fcmv1.ClassifyError(404, "gone")})

	s := st.Snapshot()
	if n := s.ErrCounts[fcmv1.Unspecified.Status()]; n != 2 {
		t.Errorf("Expected err_counts.UNSPECIFIED_ERROR is 2 but got %d", n)
	}
	if n := s.ErrCounts[fcmv1.Unregistered.Status()]; n != 1 {
		t.Errorf("Expected err_counts.UNREGISTERED is 1 but got %d", n)
	}
}

func TestStatsSnapshotConcurrently(t *testing.T) {
	st := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st.countError(fcmv1.NewServerError(fcmv1.ClassifyError(503, "unavailable")))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := json.Marshal(st.Snapshot()); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	if n := st.Snapshot().ErrCounts[fcmv1.Unavailable.Status()]; n != 800 {
		t.Errorf("Expected err_counts.UNAVAILABLE is 800 but got %d", n)
	}
}

package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/torrentctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordTrackerRequest("announce", 200, 24*time.Millisecond, true)
	RecordTrackerRequest("scrape", 0, time.Millisecond, false)

	before := testutil.ToFloat64(decodeTotal.WithLabelValues("metainfo", "error"))
	RecordDecode("metainfo", 128, time.Millisecond, errors.New("bad"))
	after := testutil.ToFloat64(decodeTotal.WithLabelValues("metainfo", "error"))
	if after-before != 1 {
		t.Fatalf("expected decode error counter to advance by 1, got %v", after-before)
	}

	testlog.Logf("observability/metrics: registration idempotent and recording paths executed")
}

func TestMiddlewaresRecordRoute(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), RequestMetrics())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ping", "200"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/ping", "200"))
	if after-before != 1 {
		t.Fatalf("expected request counter to advance by 1, got %v", after-before)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "unmatched", "404")); got < 1 {
		t.Fatalf("expected unmatched route to be counted, got %v", got)
	}
}

package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSync("inventory", nil, time.Second)
		m.SetRegionObjects("k", 3)
		m.RecordPushMessage("state_update", errors.New("boom"))
		m.RecordCacheWrite(10, nil)
		m.ForgetRegion("k")
	})
}

func TestRecordSync(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSync("inventory", nil, 10*time.Millisecond)
	m.RecordSync("inventory", errors.New("offline"), 10*time.Millisecond)
	m.RecordSync("inventory", nil, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("inventory", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("inventory", "error")))
}

func TestRegionObjectsGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetRegionObjects("inventory:u1", 42)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.RegionObjects.WithLabelValues("inventory:u1")))

	m.ForgetRegion("inventory:u1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.RegionObjects))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/regions/:kind", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/regions/inventory", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/regions/:kind", "200")))
}

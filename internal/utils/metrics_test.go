package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCountersConcurrent(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter("hits")
			m.IncGauge("inflight")
			m.DecGauge("inflight")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, m.GetCounterValue("hits"))
	assert.EqualValues(t, 0, m.GetGauge("inflight"))
	assert.EqualValues(t, 0, m.GetCounterValue("missing"))
}

func TestHistogramSnapshot(t *testing.T) {
	m := NewMetricsCollector()
	for _, v := range []int64{30, 10, 20} {
		m.RecordHistogram("latency", v)
	}

	h := m.GetMetrics()["histograms"].(map[string]map[string]int64)["latency"]
	assert.Equal(t, map[string]int64{"count": 3, "sum": 60, "min": 10, "max": 30}, h)
}

func TestAPIMetricsStatusBuckets(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	am := NewAPIMetricsWith(NewMetricsCollector(), NewTestLogger(core))

	am.RecordAPIRequest("/api/ai/transform", "POST", 200, 5*time.Millisecond)
	am.RecordAPIRequest("/api/ai/transform", "POST", 502, 5*time.Millisecond)
	am.RecordIngestion("persisted", 4)
	am.RecordTransform("expand", false)

	c := am.Collector()
	assert.EqualValues(t, 2, c.GetCounterValue("api_requests_total"))
	assert.EqualValues(t, 1, c.GetCounterValue("api_responses_2xx"))
	assert.EqualValues(t, 1, c.GetCounterValue("api_responses_5xx"))
	assert.EqualValues(t, 4, c.GetCounterValue("entities_extracted_total"))
	assert.EqualValues(t, 1, c.GetCounterValue("transform_failures_total"))
}

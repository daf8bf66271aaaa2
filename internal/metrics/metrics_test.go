package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

func TestAppMetrics_Observer(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)

	m.FrameReceived(xbee.FrameTransmitStatus)
	m.FrameReceived(xbee.FrameTransmitStatus)
	m.FrameSent(xbee.FrameATCommand)
	m.Diagnostic("malformed")
	m.BytesReceived(12)
	m.DiscardedBytes(3)
	m.PendingRequests(5)
	m.QueueFull()
	m.EventDropped()
	m.SinkError("redis")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesTotal.WithLabelValues("transmit_status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxFramesTotal.WithLabelValues("at_command")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiagnosticsTotal.WithLabelValues("malformed")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.SerialBytesReceived))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DiscardedBytesTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.PendingGauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueFullTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDroppedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrorsTotal.WithLabelValues("redis")))
}

func TestHandler_Exposition(t *testing.T) {
	reg := NewRegistry()
	m := NewAppMetrics(reg)
	m.QueueFull()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "xbee_queue_full_total 1"))
}

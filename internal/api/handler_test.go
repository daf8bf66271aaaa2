package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/xbee-digimesh/internal/api/middleware"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
	"github.com/taoyao-code/xbee-digimesh/internal/simulator"
	"github.com/taoyao-code/xbee-digimesh/internal/storage/models"
	redisstorage "github.com/taoyao-code/xbee-digimesh/internal/storage/redis"
)

const (
	pump        xbee.Address = 0x0013A20040A1B2C3
	unreachable xbee.Address = 0x0013A20040DEAD00
)

type fakeCache struct {
	nodes []redisstorage.CachedNode
	err   error
}

func (f *fakeCache) List(context.Context) ([]redisstorage.CachedNode, error) { return f.nodes, f.err }

type fakeDirectory struct {
	gotLimit, gotOffset int
}

func (f *fakeDirectory) ListNodes(_ context.Context, limit, offset int) ([]models.Node, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return []models.Node{{Address: pump.String(), NodeIdentifier: "pump"}}, nil
}

type env struct {
	engine *gin.Engine
	dev    *simulator.Device
	dir    *fakeDirectory
}

func setup(t *testing.T, auth middleware.AuthConfig, cache NodeCache) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dev := simulator.New(
		simulator.WithNodeIdentifier("coord"),
		simulator.WithNodes(xbee.NodeDescriptor{NetworkAddress: 0xFFFE, Address: pump, NodeIdentifier: "pump", DeviceType: xbee.DeviceRouter}),
		simulator.WithUnreachable(unreachable),
	)
	cfg := radio.DefaultConfig()
	cfg.RequestTimeout = time.Second
	r := radio.New(dev, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, dev) }()
	t.Cleanup(func() {
		cancel()
		_ = dev.Close()
		<-done
		_ = r.Close()
	})

	dir := &fakeDirectory{}
	h := NewHandler(r, cache, dir, nil)
	engine := gin.New()
	RegisterRoutes(engine, h, auth, middleware.RateLimitConfig{}, nil)
	return &env{engine: engine, dev: dev, dir: dir}
}

func (e *env) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestTransmit(t *testing.T) {
	e := setup(t, middleware.AuthConfig{}, nil)

	t.Run("投递成功", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/v1/transmit", TransmitRequest{Destination: pump.String(), Data: "hi"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out := decode(t, rec)
		assert.Equal(t, true, out["delivered"])
	})

	t.Run("广播", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/v1/transmit", TransmitRequest{Destination: "broadcast", DataHex: "0102"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, decode(t, rec)["delivered"])
	})

	t.Run("路由不可达", func(t *testing.T) {
		rec := e.do(http.MethodPost, "/api/v1/transmit", TransmitRequest{Destination: unreachable.String(), Data: "x"})
		require.Equal(t, http.StatusOK, rec.Code)
		out := decode(t, rec)
		assert.Equal(t, false, out["delivered"])
		assert.EqualValues(t, xbee.DeliveryRouteNotFound, out["delivery"])
	})

	t.Run("参数错误", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/v1/transmit", map[string]string{"data": "x"}).Code)
		assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/v1/transmit", TransmitRequest{Destination: "zz"}).Code)
		assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/v1/transmit", TransmitRequest{Destination: "broadcast", DataHex: "0"}).Code)
	})
}

func TestCommand(t *testing.T) {
	e := setup(t, middleware.AuthConfig{}, nil)

	rec := e.do(http.MethodPost, "/api/v1/at/ni", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "NI", out["command"])
	assert.Equal(t, "coord", out["text"])
	assert.Equal(t, "ok", out["status"])

	rec = e.do(http.MethodPost, "/api/v1/at/NI", CommandRequest{Parameter: "pump-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pump-9", e.dev.NodeIdentifier())

	rec = e.do(http.MethodPost, "/api/v1/at/ZZ", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/v1/at/NID", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestDiscover(t *testing.T) {
	e := setup(t, middleware.AuthConfig{}, nil)

	rec := e.do(http.MethodGet, "/api/v1/nodes?timeout=300ms", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["count"])
	nodes := out["nodes"].([]any)
	assert.Equal(t, "pump", nodes[0].(map[string]any)["node_identifier"])

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/v1/nodes?timeout=soon", nil).Code)
}

func TestNodeListings(t *testing.T) {
	t.Run("缓存未启用", func(t *testing.T) {
		e := setup(t, middleware.AuthConfig{}, nil)
		assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/v1/nodes/cached", nil).Code)
	})

	t.Run("缓存", func(t *testing.T) {
		cache := &fakeCache{nodes: []redisstorage.CachedNode{{NodeDescriptor: xbee.NodeDescriptor{Address: pump, NodeIdentifier: "pump"}}}}
		e := setup(t, middleware.AuthConfig{}, cache)
		rec := e.do(http.MethodGet, "/api/v1/nodes/cached", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, decode(t, rec)["count"])

		cache.err = errors.New("redis down")
		assert.Equal(t, http.StatusInternalServerError, e.do(http.MethodGet, "/api/v1/nodes/cached", nil).Code)
	})

	t.Run("目录", func(t *testing.T) {
		e := setup(t, middleware.AuthConfig{}, nil)
		rec := e.do(http.MethodGet, "/api/v1/nodes/directory?limit=5&offset=10", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, e.dir.gotLimit)
		assert.Equal(t, 10, e.dir.gotOffset)
	})
}

func TestStatusAndAuth(t *testing.T) {
	e := setup(t, middleware.AuthConfig{Enabled: true, APIKeys: []string{"k-0123456789"}}, nil)

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/v1/status", nil).Code)

	rec := e.do(http.MethodGet, "/api/v1/status", nil, "X-API-Key", "k-0123456789")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.EqualValues(t, 0, out["pending_requests"])
	assert.Equal(t, "13s", out["discovery_timeout"])
}

func TestFailMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, nil)
	tests := []struct {
		err  error
		want int
	}{
		{radio.ErrQueueFull, http.StatusTooManyRequests},
		{xbee.ErrInvalidCommand, http.StatusBadRequest},
		{&xbee.CommandError{Command: "NI", Status: xbee.ATStatusError}, http.StatusUnprocessableEntity},
		{radio.ErrRequestTimeout, http.StatusGatewayTimeout},
		{radio.ErrClosed, http.StatusServiceUnavailable},
		{&radio.TransportError{Op: "write", Err: errors.New("eio")}, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		h.fail(c, "test", tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

// discoverRecorder 记录 Discover 收到的截止时间
type discoverRecorder struct {
	Radio
	nt  time.Duration
	got []time.Duration
}

func (d *discoverRecorder) Discover(_ context.Context, timeout time.Duration) (*radio.Call[[]xbee.NodeDescriptor], error) {
	d.got = append(d.got, timeout)
	return nil, radio.ErrClosed
}

func (d *discoverRecorder) DiscoveryDefault() time.Duration { return d.nt }

func TestDiscover_TimeoutBounded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &discoverRecorder{nt: 13 * time.Second}
	h := NewHandler(rec, nil, nil, nil, WithMaxDiscoveryTimeout(20*time.Second))
	engine := gin.New()
	RegisterRoutes(engine, h, middleware.AuthConfig{}, middleware.RateLimitConfig{}, nil)
	get := func(path string) int {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/api/v1/nodes?timeout=1000h"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/api/v1/nodes?timeout=5s"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/api/v1/nodes"))
	// 缓存的 NT 本身超过上限时也截断
	rec.nt = time.Hour
	assert.Equal(t, http.StatusServiceUnavailable, get("/api/v1/nodes"))
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/nodes?timeout=-1s"))

	assert.Equal(t, []time.Duration{20 * time.Second, 5 * time.Second, 0, 20 * time.Second}, rec.got)
}

func TestNewHandler_DefaultMaxDiscovery(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, WithMaxDiscoveryTimeout(0))
	assert.Equal(t, DefaultMaxDiscoveryTimeout, h.maxDiscovery)
}

package api

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
	"github.com/taoyao-code/xbee-digimesh/internal/storage/models"
	redisstorage "github.com/taoyao-code/xbee-digimesh/internal/storage/redis"
)

// Radio 控制接口依赖的引擎能力，由 *radio.Radio 实现
type Radio interface {
	Send(ctx context.Context, dest xbee.Address, data []byte) (*radio.Call[radio.TransmitResult], error)
	Broadcast(ctx context.Context, data []byte) (*radio.Call[radio.TransmitResult], error)
	Command(ctx context.Context, command string, parameter []byte) (*radio.Call[radio.CommandResult], error)
	Discover(ctx context.Context, timeout time.Duration) (*radio.Call[[]xbee.NodeDescriptor], error)
	NodeIdentifier(ctx context.Context) (*radio.Call[string], error)
	Pending() int
	DiscoveryDefault() time.Duration
}

// NodeCache 最近发现节点的缓存（Redis）
type NodeCache interface {
	List(ctx context.Context) ([]redisstorage.CachedNode, error)
}

// Directory 节点目录（PostgreSQL）
type Directory interface {
	ListNodes(ctx context.Context, limit, offset int) ([]models.Node, error)
}

// Handler 控制 API 处理器
type Handler struct {
	radio     Radio
	cache     NodeCache
	directory Directory
	logger    *zap.Logger
	// waitLimit 单个请求等待设备应答的上限
	waitLimit time.Duration
	// maxDiscovery 节点发现截止时间上限，超出的 ?timeout 被截断
	maxDiscovery time.Duration
}

// DefaultMaxDiscoveryTimeout 未配置时的节点发现截止时间上限
const DefaultMaxDiscoveryTimeout = 50 * time.Second

// HandlerOption 处理器选项
type HandlerOption func(*Handler)

// WithMaxDiscoveryTimeout 设置节点发现截止时间上限
func WithMaxDiscoveryTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.maxDiscovery = d
		}
	}
}

// NewHandler cache、directory 可为 nil，对应接口返回 404
func NewHandler(r Radio, cache NodeCache, directory Directory, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		radio:        r,
		cache:        cache,
		directory:    directory,
		logger:       logger,
		waitLimit:    30 * time.Second,
		maxDiscovery: DefaultMaxDiscoveryTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TransmitRequest 发送请求体
type TransmitRequest struct {
	// Destination 16 位十六进制地址或 "broadcast"
	Destination string `json:"destination" binding:"required"`
	// Data 文本载荷；DataHex 非空时优先
	Data    string `json:"data"`
	DataHex string `json:"data_hex"`
}

// TransmitResponse 发送结果
type TransmitResponse struct {
	radio.TransmitResult
	Delivered bool `json:"delivered"`
}

// Transmit 发送数据并等待发送状态
func (h *Handler) Transmit(c *gin.Context) {
	var req TransmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	payload := []byte(req.Data)
	if req.DataHex != "" {
		b, err := hex.DecodeString(req.DataHex)
		if err != nil {
			badRequest(c, "data_hex: "+err.Error())
			return
		}
		payload = b
	}
	dest, err := xbee.ParseAddress(req.Destination)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.waitLimit)
	defer cancel()

	var call *radio.Call[radio.TransmitResult]
	if dest.IsBroadcast() {
		call, err = h.radio.Broadcast(ctx, payload)
	} else {
		call, err = h.radio.Send(ctx, dest, payload)
	}
	if err != nil {
		h.fail(c, "transmit", err)
		return
	}
	res, err := call.Wait(ctx)
	if err != nil {
		h.fail(c, "transmit", err)
		return
	}
	c.JSON(http.StatusOK, TransmitResponse{TransmitResult: res, Delivered: res.Delivered()})
}

// CommandRequest AT 命令请求体
type CommandRequest struct {
	// ParameterHex 参数（十六进制）；Parameter 为文本参数
	ParameterHex string `json:"parameter_hex"`
	Parameter    string `json:"parameter"`
}

// CommandResponse AT 命令结果
type CommandResponse struct {
	FrameID uint8  `json:"frame_id"`
	Command string `json:"command"`
	Status  string `json:"status"`
	DataHex string `json:"data_hex"`
	// Text 数据可打印时的文本形式
	Text string `json:"text,omitempty"`
}

// Command 执行本地 AT 命令
func (h *Handler) Command(c *gin.Context) {
	command := strings.ToUpper(c.Param("command"))
	var req CommandRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	param := []byte(req.Parameter)
	if req.ParameterHex != "" {
		b, err := hex.DecodeString(req.ParameterHex)
		if err != nil {
			badRequest(c, "parameter_hex: "+err.Error())
			return
		}
		param = b
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.waitLimit)
	defer cancel()

	call, err := h.radio.Command(ctx, command, param)
	if err != nil {
		h.fail(c, "command", err)
		return
	}
	res, err := call.Wait(ctx)
	if err != nil {
		h.fail(c, "command", err)
		return
	}
	resp := CommandResponse{
		FrameID: res.FrameID,
		Command: res.Command,
		Status:  res.Status.String(),
		DataHex: hex.EncodeToString(res.Data),
	}
	if printable(res.Data) {
		resp.Text = string(res.Data)
	}
	c.JSON(http.StatusOK, resp)
}

// Discover 触发节点发现并等待截止时间
// ?timeout=5s 覆盖默认截止时间；显式值与缓存的 NT 都不超过 maxDiscovery
func (h *Handler) Discover(c *gin.Context) {
	var timeout time.Duration
	if v := c.Query("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			badRequest(c, "invalid timeout")
			return
		}
		timeout = d
	}
	if timeout == 0 && h.radio.DiscoveryDefault() >= h.maxDiscovery {
		timeout = h.maxDiscovery
	}
	if timeout > h.maxDiscovery {
		h.logger.Debug("discovery timeout clamped",
			zap.Duration("requested", timeout), zap.Duration("max", h.maxDiscovery))
		timeout = h.maxDiscovery
	}
	wait := h.waitLimit
	if timeout+time.Second > wait {
		wait = timeout + time.Second
	}
	if deadline := h.radio.DiscoveryDefault() + 2*time.Second; timeout == 0 && deadline > wait {
		wait = deadline
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
	defer cancel()

	call, err := h.radio.Discover(ctx, timeout)
	if err != nil {
		h.fail(c, "discover", err)
		return
	}
	nodes, err := call.Wait(ctx)
	if err != nil {
		h.fail(c, "discover", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(nodes), "nodes": nodes})
}

// CachedNodes 最近发现的节点（Redis 缓存）
func (h *Handler) CachedNodes(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "node cache disabled"})
		return
	}
	nodes, err := h.cache.List(c.Request.Context())
	if err != nil {
		h.fail(c, "cached nodes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(nodes), "nodes": nodes})
}

// DirectoryNodes 节点目录分页查询
func (h *Handler) DirectoryNodes(c *gin.Context) {
	if h.directory == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "node directory disabled"})
		return
	}
	limit, offset := 100, 0
	if v := c.Query("limit"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil {
			limit = vv
		}
	}
	if v := c.Query("offset"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil {
			offset = vv
		}
	}
	nodes, err := h.directory.ListNodes(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, "directory nodes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(nodes), "nodes": nodes, "limit": limit, "offset": offset})
}

// Status 引擎状态
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pending_requests":  h.radio.Pending(),
		"discovery_timeout": h.radio.DiscoveryDefault().String(),
	})
}

// fail 错误到 HTTP 状态码的映射
func (h *Handler) fail(c *gin.Context, op string, err error) {
	code := http.StatusInternalServerError
	var cmdErr *xbee.CommandError
	var te *radio.TransportError
	switch {
	case errors.Is(err, radio.ErrQueueFull):
		code = http.StatusTooManyRequests
	case errors.Is(err, xbee.ErrInvalidCommand), errors.Is(err, xbee.ErrPayloadTooLarge):
		code = http.StatusBadRequest
	case errors.As(err, &cmdErr):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, radio.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	case errors.Is(err, radio.ErrClosed):
		code = http.StatusServiceUnavailable
	case errors.As(err, &te):
		code = http.StatusBadGateway
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("api request failed", zap.String("op", op), zap.Error(err))
	} else {
		h.logger.Warn("api request rejected", zap.String("op", op), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func printable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

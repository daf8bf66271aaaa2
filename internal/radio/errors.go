package radio

import (
	"errors"
	"fmt"

	"github.com/taoyao-code/xbee-digimesh/internal/correlation"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

var (
	// ErrClosed 引擎已关闭或链路已断开
	ErrClosed = errors.New("radio: closed")
	// ErrRemoteATUnsupported 收到远程 AT 响应（本驱动不发起远程 AT）
	ErrRemoteATUnsupported = errors.New("radio: remote AT command response not supported")
	// ErrNoHandler 已解码但没有处理器的帧类型（例如出站类型回显）
	ErrNoHandler = errors.New("radio: no handler for frame type")

	ErrQueueFull      = correlation.ErrQueueFull
	ErrOrphanResponse = correlation.ErrOrphanResponse
	ErrRequestTimeout = correlation.ErrRequestTimeout
)

// TransportError 串口读写失败
type TransportError struct {
	Op  string // write | drain | read
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("radio: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// 诊断分类（日志字段与指标标签）
const (
	DiagMalformed         = "malformed"
	DiagOversized         = "oversized"
	DiagShortFrame        = "short_frame"
	DiagUnknownFrameType  = "unknown_frame_type"
	DiagUnhandledCommand  = "unhandled_command"
	DiagOrphanResponse    = "orphan_response"
	DiagRemoteATResponse  = "remote_at_unsupported"
	DiagDiscoveryRejected = "discovery_rejected"
)

// classify 将解析错误映射为诊断分类
func classify(err error) string {
	switch {
	case errors.Is(err, xbee.ErrMalformedFrame):
		return DiagMalformed
	case errors.Is(err, xbee.ErrFrameTooLarge):
		return DiagOversized
	case errors.Is(err, xbee.ErrShortFrame):
		return DiagShortFrame
	case errors.Is(err, xbee.ErrUnknownFrameType), errors.Is(err, ErrNoHandler):
		return DiagUnknownFrameType
	case errors.Is(err, xbee.ErrUnhandledCommandResponse):
		return DiagUnhandledCommand
	case errors.Is(err, ErrOrphanResponse):
		return DiagOrphanResponse
	case errors.Is(err, ErrRemoteATUnsupported):
		return DiagRemoteATResponse
	default:
		return "other"
	}
}

package xbee

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame 帧校验失败（丢弃该帧，继续读流）
	ErrMalformedFrame = errors.New("xbee: malformed frame")
	// ErrFrameTooLarge 声明长度超过解码器上限
	ErrFrameTooLarge = errors.New("xbee: frame too large")
	// ErrShortFrame 帧体长度不足以容纳该类型的固定字段
	ErrShortFrame = errors.New("xbee: short frame")
	// ErrUnknownFrameType 未识别的帧类型
	ErrUnknownFrameType = errors.New("xbee: unknown frame type")
	// ErrUnhandledCommandResponse 未识别的 AT 命令响应
	ErrUnhandledCommandResponse = errors.New("xbee: unhandled AT command response")
	// ErrInvalidCommand AT 助记符必须为 2 个 ASCII 字符
	ErrInvalidCommand = errors.New("xbee: AT command must be 2 ASCII characters")
	// ErrPayloadTooLarge 载荷超出长度字段可表示范围
	ErrPayloadTooLarge = errors.New("xbee: payload too large")
)

// UnknownFrameTypeError 携带具体类型标签的未知帧错误
type UnknownFrameTypeError struct {
	Type byte
}

func (e *UnknownFrameTypeError) Error() string {
	return fmt.Sprintf("xbee: unknown frame type 0x%02X", e.Type)
}

func (e *UnknownFrameTypeError) Unwrap() error { return ErrUnknownFrameType }

// CommandError 设备对 AT 命令返回非零状态
type CommandError struct {
	Command string
	Status  ATStatus
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("xbee: AT command %s failed: %s", e.Command, e.Status)
}

func (s ATStatus) String() string {
	switch s {
	case ATStatusOK:
		return "ok"
	case ATStatusError:
		return "error"
	case ATStatusInvalidCommand:
		return "invalid command"
	case ATStatusInvalidParameter:
		return "invalid parameter"
	default:
		return fmt.Sprintf("status 0x%02X", byte(s))
	}
}

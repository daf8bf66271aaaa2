// Package transport 根据配置选择模块链路：本地串口或 TCP 串口服务器
package transport

import (
	"context"
	"strings"

	"github.com/taoyao-code/xbee-digimesh/internal/transport/serialport"
	"github.com/taoyao-code/xbee-digimesh/internal/transport/tcpport"
)

// Link 引擎需要的链路能力
type Link interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	Close() error
}

// tcpScheme device 以此前缀开头时走 TCP
const tcpScheme = "tcp://"

// IsTCP 是否为 TCP 链路
func IsTCP(device string) bool { return strings.HasPrefix(device, tcpScheme) }

// Open 打开链路；device 形如 /dev/ttyUSB0 或 tcp://host:port
func Open(ctx context.Context, c serialport.Config) (Link, error) {
	if IsTCP(c.Device) {
		return tcpport.Dial(ctx, tcpport.Config{
			Addr:        strings.TrimPrefix(c.Device, tcpScheme),
			ReadTimeout: c.ReadTimeout,
		})
	}
	return serialport.Open(c)
}

package radio

import "time"

// Config 引擎参数
type Config struct {
	// DiscoveryTimeout NT 默认值，设备应答 NT 后被覆盖
	DiscoveryTimeout time.Duration
	// DiscoveryMargin 节点发现截止时间在 NT 之上的余量
	DiscoveryMargin time.Duration
	// RequestTimeout 单响应请求的超时，<0 表示不超时
	RequestTimeout time.Duration
	// MirrorResults 关联结果在交付调用方的同时也投递到事件流
	MirrorResults bool
	// EventBuffer 事件通道容量，满时丢弃
	EventBuffer int
	// WriteRate 每秒最多写出的帧数，0 表示不限
	WriteRate  float64
	WriteBurst int
	// MaxFrameLen 入站帧上限（含开销），0 表示只受长度字段限制
	MaxFrameLen int
}

const (
	defaultDiscoveryTimeout = 13 * time.Second
	defaultDiscoveryMargin  = time.Second
	defaultRequestTimeout   = 10 * time.Second
	defaultEventBuffer      = 256
)

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		DiscoveryTimeout: defaultDiscoveryTimeout,
		DiscoveryMargin:  defaultDiscoveryMargin,
		RequestTimeout:   defaultRequestTimeout,
		EventBuffer:      defaultEventBuffer,
	}
}

func (c Config) withDefaults() Config {
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = defaultDiscoveryTimeout
	}
	if c.DiscoveryMargin < 0 {
		c.DiscoveryMargin = 0
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	if c.WriteRate > 0 && c.WriteBurst <= 0 {
		c.WriteBurst = 1
	}
	return c
}

package radio

import (
	"fmt"
	"sync"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// Handler 帧处理函数
type Handler func(f xbee.Frame) error

// Router 帧类型 -> 处理器
type Router struct {
	mu       sync.RWMutex
	handlers map[xbee.FrameType]Handler
}

func NewRouter() *Router { return &Router{handlers: make(map[xbee.FrameType]Handler)} }

func (t *Router) Register(ft xbee.FrameType, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[ft] = h
}

// Route 分发；没有处理器时返回 ErrNoHandler
func (t *Router) Route(f xbee.Frame) error {
	t.mu.RLock()
	h := t.handlers[f.FrameType()]
	t.mu.RUnlock()
	if h == nil {
		return fmt.Errorf("%w: 0x%02X", ErrNoHandler, byte(f.FrameType()))
	}
	return h(f)
}

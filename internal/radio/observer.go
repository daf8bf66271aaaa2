package radio

import "github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"

// Observer 引擎运行指标
type Observer interface {
	FrameReceived(t xbee.FrameType)
	FrameSent(t xbee.FrameType)
	Diagnostic(kind string)
	BytesReceived(n int)
	DiscardedBytes(n int)
	PendingRequests(n int)
	QueueFull()
	EventDropped()
}

type nopObserver struct{}

func (nopObserver) FrameReceived(xbee.FrameType) {}
func (nopObserver) FrameSent(xbee.FrameType)     {}
func (nopObserver) Diagnostic(string)            {}
func (nopObserver) BytesReceived(int)            {}
func (nopObserver) DiscardedBytes(int)           {}
func (nopObserver) PendingRequests(int)          {}
func (nopObserver) QueueFull()                   {}
func (nopObserver) EventDropped()                {}

// NopObserver 空实现
func NopObserver() Observer { return nopObserver{} }

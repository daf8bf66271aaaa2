package health

import "sync/atomic"

// Readiness 就绪开关：串口链路与事件下游
type Readiness struct {
	linkReady  atomic.Bool
	sinksReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

// SetLinkReady 串口已打开且读循环在运行
func (r *Readiness) SetLinkReady(v bool) { r.linkReady.Store(v) }

// SetSinksReady 已启用的事件下游均已连接
func (r *Readiness) SetSinksReady(v bool) { r.sinksReady.Store(v) }

func (r *Readiness) LinkReady() bool { return r.linkReady.Load() }

// Ready 总体就绪
func (r *Readiness) Ready() bool {
	return r.linkReady.Load() && r.sinksReady.Load()
}

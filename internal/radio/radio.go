// Package radio 是 DigiMesh API 帧引擎：重组入站字节、分发帧、
// 按帧 ID 关联响应，并串行化出站写
package radio

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/xbee-digimesh/internal/correlation"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// Port 出站链路：写入后 Drain 等待数据真正发出
// go.bug.st/serial.Port 满足该接口
type Port interface {
	io.Writer
	Drain() error
}

// Radio 引擎
type Radio struct {
	cfg     Config
	port    Port
	log     *zap.Logger
	obs     Observer
	text    *xbee.StatusText
	table   *correlation.Table
	router  *Router
	limiter *rate.Limiter

	feedMu sync.Mutex
	dec    *xbee.StreamDecoder

	writeMu sync.Mutex

	evMu   sync.RWMutex
	events chan Event
	closed bool

	ntMu sync.RWMutex
	nt   time.Duration

	now   func() time.Time
	newID func() string
}

// Option 配置项
type Option func(*Radio)

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(r *Radio) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(r *Radio) {
		if o != nil {
			r.obs = o
		}
	}
}

// WithStatusText 设置状态码描述表
func WithStatusText(t *xbee.StatusText) Option {
	return func(r *Radio) {
		if t != nil {
			r.text = t
		}
	}
}

// WithNow 替换时钟（测试）
func WithNow(now func() time.Time) Option {
	return func(r *Radio) {
		if now != nil {
			r.now = now
		}
	}
}

// New 创建引擎；入站字节通过 Run 或 Feed 输入
func New(port Port, cfg Config, opts ...Option) *Radio {
	cfg = cfg.withDefaults()
	r := &Radio{
		cfg:    cfg,
		port:   port,
		log:    zap.NewNop(),
		obs:    NopObserver(),
		text:   xbee.DefaultStatusText(),
		router: NewRouter(),
		dec:    xbee.NewStreamDecoder(cfg.MaxFrameLen),
		events: make(chan Event, cfg.EventBuffer),
		nt:     cfg.DiscoveryTimeout,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.table = correlation.NewTable(correlation.WithObserver(correlation.ObserverFunc(r.obs.PendingRequests)))
	if cfg.WriteRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.WriteRate), cfg.WriteBurst)
	}
	r.registerHandlers()
	return r
}

// Events 事件流；Close 后关闭
func (r *Radio) Events() <-chan Event { return r.events }

// Pending 在途请求数
func (r *Radio) Pending() int { return r.table.Len() }

// DecoderStats 入站解码统计
func (r *Radio) DecoderStats() xbee.DecoderStats {
	r.feedMu.Lock()
	defer r.feedMu.Unlock()
	return r.dec.Stats()
}

// Run 读循环，阻塞直到读出错或 ctx 结束
// 串口应设置读超时，以便及时观察到 ctx 取消
func (r *Radio) Run(ctx context.Context, rd io.Reader) error {
	r.emit(Event{Kind: EventOpen})
	r.log.Info("radio reader started")
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			r.shutdown(nil)
			return nil
		}
		n, err := rd.Read(buf)
		if n > 0 {
			r.Feed(buf[:n])
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, io.EOF) {
			r.shutdown(nil)
			return nil
		}
		te := r.transportFailure("read", err)
		r.shutdown(te)
		return te
	}
}

// shutdown 链路结束：在途请求全部以错误完成
func (r *Radio) shutdown(cause error) {
	failWith := cause
	if failWith == nil {
		failWith = ErrClosed
	}
	if n := r.table.FailAll(failWith); n > 0 {
		r.log.Warn("pending requests aborted", zap.Int("count", n), zap.Error(failWith))
	}
	r.emit(Event{Kind: EventClosed, Err: cause})
	r.log.Info("radio reader stopped")
}

// Feed 输入一段入站字节，按线上顺序分发
// 解析错误不返回，转为诊断事件
func (r *Radio) Feed(p []byte) {
	r.feedMu.Lock()
	defer r.feedMu.Unlock()
	r.obs.BytesReceived(len(p))
	before := r.dec.Stats().Discarded
	r.dec.Feed(p, r.dispatch, func(err error) {
		r.diagnose(classify(err), err)
	})
	if d := r.dec.Stats().Discarded - before; d > 0 {
		r.obs.DiscardedBytes(int(d))
	}
}

func (r *Radio) dispatch(body []byte) {
	f, err := xbee.Decode(body)
	if err != nil {
		r.diagnose(classify(err), err)
		return
	}
	r.obs.FrameReceived(f.FrameType())
	if ce := r.log.Check(zap.DebugLevel, "frame received"); ce != nil {
		ce.Write(zap.Stringer("type", f.FrameType()), zap.Uint8("frame_id", f.ID()), zap.String("body", hex.EncodeToString(body)))
	}
	if err := r.router.Route(f); err != nil {
		r.diagnose(classify(err), err, zap.Stringer("type", f.FrameType()))
	}
}

// Close 停止引擎：在途请求以 ErrClosed 完成，关闭事件流
// 不关闭底层端口
func (r *Radio) Close() error {
	r.evMu.Lock()
	if r.closed {
		r.evMu.Unlock()
		return nil
	}
	r.closed = true
	r.evMu.Unlock()

	r.table.FailAll(ErrClosed)

	r.evMu.Lock()
	close(r.events)
	r.evMu.Unlock()
	return nil
}

func (r *Radio) isClosed() bool {
	r.evMu.RLock()
	defer r.evMu.RUnlock()
	return r.closed
}

// emit 非阻塞投递；通道满时丢弃并计数
func (r *Radio) emit(e Event) {
	e.ID = r.newID()
	e.Time = r.now()
	if e.Err != nil {
		e.Error = e.Err.Error()
	}
	r.evMu.RLock()
	defer r.evMu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- e:
	default:
		r.obs.EventDropped()
		r.log.Debug("event dropped", zap.String("kind", string(e.Kind)))
	}
}

func (r *Radio) diagnose(kind string, err error, fields ...zap.Field) {
	r.obs.Diagnostic(kind)
	r.log.Warn("frame diagnostic", append(fields, zap.String("kind", kind), zap.Error(err))...)
	r.emit(Event{Kind: EventDiagnostic, Diagnostic: kind, Err: err})
}

func (r *Radio) transportFailure(op string, err error) *TransportError {
	te := &TransportError{Op: op, Err: err}
	r.log.Error("transport failure", zap.String("op", op), zap.Error(err))
	r.emit(Event{Kind: EventTransportError, Err: te})
	return te
}

// writeFrame 编码、写出、Drain 在同一把锁内完成
func (r *Radio) writeFrame(ctx context.Context, f xbee.Frame) error {
	b, err := xbee.Encode(f)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if _, err := r.port.Write(b); err != nil {
		return r.transportFailure("write", err)
	}
	if err := r.port.Drain(); err != nil {
		return r.transportFailure("drain", err)
	}
	r.obs.FrameSent(f.FrameType())
	if ce := r.log.Check(zap.DebugLevel, "frame sent"); ce != nil {
		ce.Write(zap.Stringer("type", f.FrameType()), zap.Uint8("frame_id", f.ID()), zap.String("raw", hex.EncodeToString(b)))
	}
	return nil
}

// submit 占用帧 ID 并写出；超时从写出成功后开始计
// 写出失败时只撤销本次登记，调用方同步拿到错误
func (r *Radio) submit(ctx context.Context, e correlation.Entry, build func(id uint8) xbee.Frame) (uint8, error) {
	if r.isClosed() {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tk, err := r.table.Hold(e)
	if err != nil {
		if errors.Is(err, correlation.ErrQueueFull) {
			r.obs.QueueFull()
		}
		return 0, err
	}
	if err := r.writeFrame(ctx, build(tk.ID)); err != nil {
		r.table.Withdraw(tk)
		return 0, err
	}
	r.table.Arm(tk)
	return tk.ID, nil
}

// WaitSlot 表满时阻塞到有帧 ID 释放
func (r *Radio) WaitSlot(ctx context.Context) error {
	freed := r.table.SlotFreed()
	if r.table.Len() < correlation.MaxID {
		return nil
	}
	select {
	case <-freed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiscoveryDefault 当前缓存的 NT 值（节点发现默认截止时间的基准）
func (r *Radio) DiscoveryDefault() time.Duration {
	r.ntMu.RLock()
	defer r.ntMu.RUnlock()
	return r.nt
}

func (r *Radio) setDiscoveryDefault(d time.Duration) {
	if d <= 0 {
		return
	}
	r.ntMu.Lock()
	r.nt = d
	r.ntMu.Unlock()
}

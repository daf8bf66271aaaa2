// Package correlation 维护帧 ID（1..255）与待响应请求的对应关系
package correlation

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrQueueFull 255 个帧 ID 全部占用
	ErrQueueFull = errors.New("correlation: all frame ids in use")
	// ErrOrphanResponse 响应的帧 ID 没有对应的待处理请求
	ErrOrphanResponse = errors.New("correlation: response for unknown frame id")
	// ErrIDInUse 帧 ID 已被占用
	ErrIDInUse = errors.New("correlation: frame id in use")
	// ErrInvalidID 帧 ID 0 表示不需要响应，不能登记
	ErrInvalidID = errors.New("correlation: frame id 0 is not correlatable")
	// ErrRequestTimeout 在超时前没有收到响应
	ErrRequestTimeout = errors.New("correlation: request timed out")
)

// MaxID 最大帧 ID
const MaxID = 255

// Mode 待处理项的完成方式
type Mode uint8

const (
	// FireAndForget 调用方不关心结果，响应到达即释放
	FireAndForget Mode = iota
	// Single 第一条响应完成请求
	Single
	// Accumulating 收集多条响应，直到超时
	Accumulating
)

func (m Mode) String() string {
	switch m {
	case FireAndForget:
		return "fire_and_forget"
	case Single:
		return "single"
	case Accumulating:
		return "accumulating"
	default:
		return "unknown"
	}
}

// Result 交付给 Entry.Deliver 的结果
type Result struct {
	ID    uint8
	Label string
	Mode  Mode
	Value any   // FireAndForget / Single
	Items []any // Accumulating
	Err   error
}

// Entry 一个待响应请求
// Deliver 在 ID 已释放后调用，且恰好一次（Cancel、Withdraw 除外）；
// 调用时不持有表锁，可以在其中重新 Reserve
type Entry struct {
	Mode    Mode
	Label   string
	Timeout time.Duration
	// Parameter 请求携带的参数，响应省略数据时据此回填
	Parameter []byte
	Deliver   func(Result)
}

// Observer 表容量变化观察者（用于 pending 指标）
type Observer interface {
	PendingChanged(n int)
}

// ObserverFunc 函数适配
type ObserverFunc func(n int)

func (f ObserverFunc) PendingChanged(n int) {
	if f != nil {
		f(n)
	}
}

type pending struct {
	entry Entry
	items []any
	timer *time.Timer
}

// Table 帧 ID 关联表，单一互斥锁保护
type Table struct {
	mu      sync.Mutex
	slots   [MaxID + 1]*pending
	count   int
	last    uint8
	freed   chan struct{}
	observe Observer
}

// Option 配置项
type Option func(*Table)

// WithObserver 设置观察者
func WithObserver(o Observer) Option {
	return func(t *Table) {
		if o != nil {
			t.observe = o
		}
	}
}

// NewTable 创建关联表
func NewTable(opts ...Option) *Table {
	t := &Table{
		freed:   make(chan struct{}),
		observe: ObserverFunc(nil),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allocate 从上次分配位置之后循环查找空闲 ID
// 只查找不占用；需要原子占用时用 Reserve
func (t *Table) Allocate() (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextFreeLocked()
}

func (t *Table) nextFreeLocked() (uint8, error) {
	id := t.last
	for i := 0; i < MaxID; i++ {
		id++
		if id == 0 {
			id = 1
		}
		if t.slots[id] == nil {
			t.last = id
			return id, nil
		}
	}
	return 0, ErrQueueFull
}

// Register 在指定 ID 上登记待处理项
func (t *Table) Register(id uint8, e Entry) error {
	if id == 0 {
		return ErrInvalidID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slots[id] != nil {
		return fmt.Errorf("%w: %d", ErrIDInUse, id)
	}
	t.storeLocked(id, e)
	return nil
}

// Reserve 分配并登记，一次加锁完成；超时从登记时开始计
func (t *Table) Reserve(e Entry) (uint8, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.nextFreeLocked()
	if err != nil {
		return 0, err
	}
	t.storeLocked(id, e)
	return id, nil
}

// Ticket 一次 Hold 的凭据，ID 被释放并重新分配后凭据失效
type Ticket struct {
	ID uint8
	p  *pending
}

// Hold 分配并登记，但不启动超时；请求写出后调用 Arm，写出失败调用 Withdraw
func (t *Table) Hold(e Entry) (Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, err := t.nextFreeLocked()
	if err != nil {
		return Ticket{}, err
	}
	p := &pending{entry: e}
	t.putLocked(id, p)
	return Ticket{ID: id, p: p}, nil
}

// Arm 启动凭据对应项的超时
// 项已完成（响应先于 Arm 到达）或凭据失效时返回 false
func (t *Table) Arm(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tk.p == nil || t.slots[tk.ID] != tk.p {
		return false
	}
	t.armLocked(tk.ID, tk.p)
	return true
}

// Withdraw 撤销凭据对应的项，不交付
// 只移除同一次 Hold 登记的项，ID 已被他人重新占用时不做任何事
func (t *Table) Withdraw(tk Ticket) bool {
	t.mu.Lock()
	if tk.p == nil || t.slots[tk.ID] != tk.p {
		t.mu.Unlock()
		return false
	}
	freed := t.removeLocked(tk.ID, tk.p)
	t.mu.Unlock()
	close(freed)
	return true
}

func (t *Table) storeLocked(id uint8, e Entry) {
	p := &pending{entry: e}
	t.armLocked(id, p)
	t.putLocked(id, p)
}

func (t *Table) armLocked(id uint8, p *pending) {
	if p.entry.Timeout > 0 && p.timer == nil {
		p.timer = time.AfterFunc(p.entry.Timeout, func() { t.expire(id, p) })
	}
}

func (t *Table) putLocked(id uint8, p *pending) {
	t.slots[id] = p
	t.count++
	t.observe.PendingChanged(t.count)
}

// Resolve 交付一条响应
// FireAndForget/Single：先释放 ID，再调用 Deliver，最后广播 slot freed；
// Accumulating：追加到集合，ID 保持占用
func (t *Table) Resolve(id uint8, value any) (Mode, error) {
	t.mu.Lock()
	p := t.slots[id]
	if id == 0 || p == nil {
		t.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrOrphanResponse, id)
	}
	if p.entry.Mode == Accumulating {
		p.items = append(p.items, value)
		t.mu.Unlock()
		return Accumulating, nil
	}
	freed := t.removeLocked(id, p)
	t.mu.Unlock()

	t.deliver(p.entry, Result{ID: id, Label: p.entry.Label, Mode: p.entry.Mode, Value: value})
	close(freed)
	return p.entry.Mode, nil
}

// Fail 以错误完成一个待处理项（例如设备返回的错误状态）
// Accumulating 项连同已收集的结果一起交付
func (t *Table) Fail(id uint8, err error) error {
	t.mu.Lock()
	p := t.slots[id]
	if id == 0 || p == nil {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrOrphanResponse, id)
	}
	freed := t.removeLocked(id, p)
	t.mu.Unlock()

	t.deliver(p.entry, Result{ID: id, Label: p.entry.Label, Mode: p.entry.Mode, Items: p.items, Err: err})
	close(freed)
	return nil
}

// Cancel 丢弃 ID 上当前的待处理项，不交付
// 不校验登记者；并发场景下用 Hold/Withdraw
func (t *Table) Cancel(id uint8) bool {
	t.mu.Lock()
	p := t.slots[id]
	if id == 0 || p == nil {
		t.mu.Unlock()
		return false
	}
	freed := t.removeLocked(id, p)
	t.mu.Unlock()
	close(freed)
	return true
}

// FailAll 以同一错误完成全部待处理项（传输关闭时使用）
func (t *Table) FailAll(err error) int {
	type done struct {
		id uint8
		p  *pending
	}
	t.mu.Lock()
	var all []done
	for id := 1; id <= MaxID; id++ {
		if p := t.slots[id]; p != nil {
			all = append(all, done{uint8(id), p})
		}
	}
	var freed chan struct{}
	for _, d := range all {
		if freed != nil {
			close(freed)
		}
		freed = t.removeLocked(d.id, d.p)
	}
	t.mu.Unlock()

	for _, d := range all {
		t.deliver(d.p.entry, Result{ID: d.id, Label: d.p.entry.Label, Mode: d.p.entry.Mode, Items: d.p.items, Err: err})
	}
	if freed != nil {
		close(freed)
	}
	return len(all)
}

func (t *Table) expire(id uint8, p *pending) {
	t.mu.Lock()
	// ID 可能已被响应释放并重新分配
	if t.slots[id] != p {
		t.mu.Unlock()
		return
	}
	freed := t.removeLocked(id, p)
	t.mu.Unlock()

	r := Result{ID: id, Label: p.entry.Label, Mode: p.entry.Mode}
	if p.entry.Mode == Accumulating {
		r.Items = p.items
		if r.Items == nil {
			r.Items = []any{}
		}
	} else {
		r.Err = ErrRequestTimeout
	}
	t.deliver(p.entry, r)
	close(freed)
}

// removeLocked 释放 ID，返回需要在解锁并交付后关闭的广播通道
func (t *Table) removeLocked(id uint8, p *pending) chan struct{} {
	if p.timer != nil {
		p.timer.Stop()
	}
	t.slots[id] = nil
	t.count--
	t.observe.PendingChanged(t.count)
	freed := t.freed
	t.freed = make(chan struct{})
	return freed
}

func (t *Table) deliver(e Entry, r Result) {
	if e.Deliver != nil {
		e.Deliver(r)
	}
}

// SlotFreed 返回在下一次释放 ID 时关闭的通道
func (t *Table) SlotFreed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.freed
}

// Len 当前占用的 ID 数
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Pending 查询 ID 是否占用及其模式
func (t *Table) Pending(id uint8) (Mode, bool) {
	e, ok := t.Lookup(id)
	return e.Mode, ok
}

// Lookup 返回 ID 上登记的 Entry 副本
func (t *Table) Lookup(id uint8) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p := t.slots[id]; p != nil {
		return p.entry, true
	}
	return Entry{}, false
}

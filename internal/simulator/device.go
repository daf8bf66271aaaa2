// Package simulator 提供一个内存中的 DigiMesh 模块，
// 按 API 帧协议应答 NI/NT/ND 与发送请求，用于离线调试与测试
package simulator

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// Device 模拟模块；同时满足 radio.Port 与 io.Reader
type Device struct {
	mu          sync.Mutex
	label       string
	nt          uint16
	nodes       []xbee.NodeDescriptor
	unreachable map[xbee.Address]bool
	nodeGap     time.Duration
	silent      bool

	dec    *xbee.StreamDecoder
	out    chan []byte
	rest   []byte
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

// Option 配置项
type Option func(*Device)

// WithNodeIdentifier 初始 NI
func WithNodeIdentifier(label string) Option {
	return func(d *Device) { d.label = label }
}

// WithNodes 节点发现时应答的节点（按顺序）
func WithNodes(nodes ...xbee.NodeDescriptor) Option {
	return func(d *Device) { d.nodes = append(d.nodes, nodes...) }
}

// WithUnreachable 对这些地址的发送返回 route not found
func WithUnreachable(addrs ...xbee.Address) Option {
	return func(d *Device) {
		for _, a := range addrs {
			d.unreachable[a] = true
		}
	}
}

// WithNodeGap 节点发现响应之间的间隔
func WithNodeGap(gap time.Duration) Option {
	return func(d *Device) { d.nodeGap = gap }
}

// WithDiscoveryTimeout 初始 NT（单位 100ms）
func WithDiscoveryTimeout(d time.Duration) Option {
	return func(dev *Device) {
		if p, err := xbee.EncodeDiscoveryTimeout(d); err == nil {
			dev.nt = binary.BigEndian.Uint16(p)
		}
	}
}

// New 创建模拟模块
func New(opts ...Option) *Device {
	d := &Device{
		label:       "SIM",
		nt:          0x82,
		unreachable: make(map[xbee.Address]bool),
		dec:         xbee.NewStreamDecoder(0),
		out:         make(chan []byte, 1024),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetSilent 静默时吞掉所有请求不应答（用于超时场景）
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	d.silent = silent
	d.mu.Unlock()
}

// NodeIdentifier 当前 NI
func (d *Device) NodeIdentifier() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.label
}

// Write 接收主机写出的字节
func (d *Device) Write(p []byte) (int, error) {
	select {
	case <-d.done:
		return 0, io.ErrClosedPipe
	default:
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dec.Feed(p, d.handle, nil)
	return len(p), nil
}

// Drain 无缓冲，直接返回
func (d *Device) Drain() error { return nil }

// Read 读取模块发往主机的字节；Close 后返回 io.EOF
func (d *Device) Read(p []byte) (int, error) {
	if len(d.rest) == 0 {
		select {
		case b := <-d.out:
			d.rest = b
		case <-d.done:
			return 0, io.EOF
		}
	}
	n := copy(p, d.rest)
	d.rest = d.rest[n:]
	return n, nil
}

// Inject 注入任意帧（例如对端发来的数据或模块状态）
func (d *Device) Inject(f xbee.Frame) error {
	b, err := xbee.Encode(f)
	if err != nil {
		return err
	}
	d.send(b)
	return nil
}

// InjectRaw 注入原始字节
func (d *Device) InjectRaw(b []byte) {
	d.send(append([]byte(nil), b...))
}

// Close 停止应答，Read 返回 io.EOF
func (d *Device) Close() error {
	d.closed.Do(func() { close(d.done) })
	d.wg.Wait()
	return nil
}

func (d *Device) send(b []byte) {
	select {
	case d.out <- b:
	case <-d.done:
	}
}

func (d *Device) reply(f xbee.Frame) {
	if b, err := xbee.Encode(f); err == nil {
		d.send(b)
	}
}

// handle 在 d.mu 内调用
func (d *Device) handle(body []byte) {
	if d.silent {
		return
	}
	f, err := xbee.Decode(body)
	if err != nil {
		return
	}
	switch req := f.(type) {
	case xbee.ATCommand:
		d.handleCommand(req)
	case xbee.TransmitRequest:
		if req.FrameID == 0 {
			return
		}
		st := xbee.TransmitStatus{FrameID: req.FrameID, NetworkAddress: xbee.UnknownNetworkAddress}
		if !req.Broadcast && d.unreachable[req.Destination] {
			st.Delivery = xbee.DeliveryRouteNotFound
			st.Retries = 3
			st.Discovery = 0x02
		}
		d.reply(st)
	}
}

func (d *Device) handleCommand(req xbee.ATCommand) {
	resp := xbee.ATCommandResponse{FrameID: req.FrameID, Command: req.Command}
	switch req.Command {
	case xbee.CmdNodeIdentifier:
		if len(req.Parameter) > 20 {
			resp.Status = xbee.ATStatusInvalidParameter
		} else if req.Parameter != nil {
			d.label = string(req.Parameter)
		} else {
			resp.Data = []byte(d.label)
		}
	case xbee.CmdDiscoveryTimeout:
		switch len(req.Parameter) {
		case 0:
			resp.Data = []byte{byte(d.nt >> 8), byte(d.nt)}
		case 1, 2:
			v, _ := xbee.ParseDiscoveryTimeout(req.Parameter)
			if v < 2*time.Second {
				resp.Status = xbee.ATStatusInvalidParameter
			} else {
				d.nt = uint16(v / (xbee.DiscoveryTimeoutUnitMs * time.Millisecond))
			}
		default:
			resp.Status = xbee.ATStatusInvalidParameter
		}
	case xbee.CmdNodeDiscover:
		d.discover(req.FrameID)
		return
	default:
		resp.Status = xbee.ATStatusInvalidCommand
	}
	if req.FrameID != 0 {
		d.reply(resp)
	}
}

// discover 异步逐个应答节点，最后发送空数据的结束标记
func (d *Device) discover(id uint8) {
	nodes := append([]xbee.NodeDescriptor(nil), d.nodes...)
	gap := d.nodeGap
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for _, n := range nodes {
			if gap > 0 {
				select {
				case <-time.After(gap):
				case <-d.done:
					return
				}
			}
			d.reply(xbee.ATCommandResponse{FrameID: id, Command: xbee.CmdNodeDiscover, Data: xbee.AppendNodeDescriptor(nil, n)})
		}
		d.reply(xbee.ATCommandResponse{FrameID: id, Command: xbee.CmdNodeDiscover})
	}()
}

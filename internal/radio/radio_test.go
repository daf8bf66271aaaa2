package radio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

type fakePort struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	drains   int
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Drain() error {
	p.mu.Lock()
	p.drains++
	p.mu.Unlock()
	return nil
}

func (p *fakePort) last() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return nil
	}
	return p.writes[len(p.writes)-1]
}

// gatedPort 写出阻塞到 gate 关闭
type gatedPort struct {
	fakePort
	gate chan struct{}
}

func (p *gatedPort) Write(b []byte) (int, error) {
	<-p.gate
	return p.fakePort.Write(b)
}

func wire(t *testing.T, f xbee.Frame) []byte {
	t.Helper()
	b, err := xbee.Encode(f)
	require.NoError(t, err)
	return b
}

func newTestRadio(t *testing.T, cfg Config) (*Radio, *fakePort) {
	t.Helper()
	p := &fakePort{}
	r := New(p, cfg)
	t.Cleanup(func() { _ = r.Close() })
	return r, p
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func nextEvent(t *testing.T, r *Radio, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-r.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
		}
	}
}

func pendingEvents(r *Radio) []Event {
	var out []Event
	for {
		select {
		case ev := <-r.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRadio_NodeIdentifier(t *testing.T) {
	r, p := newTestRadio(t, DefaultConfig())
	call, err := r.NodeIdentifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(1), call.FrameID)
	assert.Equal(t, []byte{0x7E, 0x00, 0x04, 0x08, 0x01, 'N', 'I', 0x5F}, p.last())
	assert.Equal(t, 1, r.Pending())

	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: 1, Command: "NI", Data: []byte("node7")}))
	label, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "node7", label)
	assert.Equal(t, 0, r.Pending())
	assert.Empty(t, pendingEvents(r))
}

func TestRadio_SendWireFormatAndStatus(t *testing.T) {
	r, p := newTestRadio(t, DefaultConfig())
	call, err := r.Send(context.Background(), xbee.Address(0x0013A20040A1B2C3), []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x7E, 0x00, 0x10, 0x10, 0x01,
		0x00, 0x13, 0xA2, 0x00, 0x40, 0xA1, 0xB2, 0xC3,
		0xFF, 0xFE, 0x00, 0x00, 'h', 'i', 0x15,
	}, p.last())
	assert.Equal(t, 1, p.drains)

	r.Feed(wire(t, xbee.TransmitStatus{FrameID: 1, NetworkAddress: xbee.UnknownNetworkAddress}))
	res, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	assert.Equal(t, uint8(0), res.Retries)
	assert.False(t, res.DiscoveryNeeded)
	assert.Equal(t, uint8(1), res.FrameID)
}

func TestRadio_BroadcastUsesBroadcastAddress(t *testing.T) {
	r, p := newTestRadio(t, DefaultConfig())
	_, err := r.Broadcast(context.Background(), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xFF, 0xFF}, p.last()[5:13])
}

func TestRadio_SendNoAckUsesFrameIDZero(t *testing.T) {
	r, p := newTestRadio(t, DefaultConfig())
	require.NoError(t, r.SendNoAck(context.Background(), 0x42, []byte("x")))
	assert.Equal(t, byte(0x00), p.last()[4])
	assert.Equal(t, 0, r.Pending())
}

func TestRadio_DiscoveryCollectsInOrderAndReportsLateOrphan(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	call, err := r.Discover(context.Background(), 150*time.Millisecond)
	require.NoError(t, err)
	id := call.FrameID

	nodes := []xbee.NodeDescriptor{
		{NetworkAddress: 0xFFFE, Address: 0x0013A20000000001, NodeIdentifier: "alpha", ParentNetworkAddress: 0xFFFE, DeviceType: xbee.DeviceRouter},
		{NetworkAddress: 0xFFFE, Address: 0x0013A20000000002, NodeIdentifier: "beta", ParentNetworkAddress: 0xFFFE, DeviceType: xbee.DeviceEndDevice},
		{NetworkAddress: 0xFFFE, Address: 0x0013A20000000003, NodeIdentifier: "", ParentNetworkAddress: 0xFFFE, DeviceType: xbee.DeviceCoordinator},
	}
	for _, n := range nodes {
		r.Feed(wire(t, xbee.ATCommandResponse{FrameID: id, Command: "ND", Data: xbee.AppendNodeDescriptor(nil, n)}))
	}
	// 结束标记不计入结果
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: id, Command: "ND"}))

	got, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, nodes, got)
	assert.Equal(t, 0, r.Pending())

	var discovered []string
	for _, ev := range pendingEvents(r) {
		if ev.Kind == EventNodeDiscovered {
			discovered = append(discovered, ev.Node.NodeIdentifier)
		}
	}
	assert.Equal(t, []string{"alpha", "beta", ""}, discovered)

	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: id, Command: "ND", Data: xbee.AppendNodeDescriptor(nil, nodes[0])}))
	ev := nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagOrphanResponse, ev.Diagnostic)
	assert.ErrorIs(t, ev.Err, ErrOrphanResponse)
}

func TestRadio_DiscoveryDefaultDeadline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscoveryTimeout = 40 * time.Millisecond
	cfg.DiscoveryMargin = 20 * time.Millisecond
	r, _ := newTestRadio(t, cfg)

	start := time.Now()
	call, err := r.Discover(context.Background(), 0)
	require.NoError(t, err)
	nodes, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRadio_DiscoveryRejectedStatus(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	call, err := r.Discover(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: call.FrameID, Command: "ND", Status: xbee.ATStatusError}))

	ev := nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagDiscoveryRejected, ev.Diagnostic)
	nodes, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestRadio_CorruptFrameThenRecovery(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	call, err := r.NodeIdentifier(context.Background())
	require.NoError(t, err)

	bad := wire(t, xbee.ATCommandResponse{FrameID: 1, Command: "NI", Data: []byte("zzz")})
	bad[len(bad)-1]++
	r.Feed(bad)
	ev := nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagMalformed, ev.Diagnostic)
	assert.Equal(t, 1, r.Pending())

	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: 1, Command: "NI", Data: []byte("node7")}))
	label, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "node7", label)
	assert.Equal(t, uint64(1), r.DecoderStats().Malformed)
}

func TestRadio_QueueFullThenReuse(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	for i := 1; i <= 255; i++ {
		call, err := r.Send(context.Background(), 0x42, []byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, uint8(i), call.FrameID)
	}
	_, err := r.Send(context.Background(), 0x42, []byte("overflow"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 255, r.Pending())

	r.Feed(wire(t, xbee.TransmitStatus{FrameID: 7}))
	call, err := r.Send(context.Background(), 0x42, []byte("again"))
	require.NoError(t, err)
	assert.Equal(t, uint8(7), call.FrameID)
}

func TestRadio_WaitSlot(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	require.NoError(t, r.WaitSlot(context.Background()))
	for i := 0; i < 255; i++ {
		_, err := r.Send(context.Background(), 0x42, nil)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.WaitSlot(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- r.WaitSlot(context.Background()) }()
	r.Feed(wire(t, xbee.TransmitStatus{FrameID: 100}))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitSlot did not return")
	}
}

func TestRadio_CommandErrorStatus(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	call, err := r.SetNodeIdentifier(context.Background(), "this-label-is-way-too-long")
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: call.FrameID, Command: "NI", Status: xbee.ATStatusInvalidParameter}))

	_, err = call.Wait(waitCtx(t))
	var ce *xbee.CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "NI", ce.Command)
	assert.Equal(t, xbee.ATStatusInvalidParameter, ce.Status)
	assert.Equal(t, 0, r.Pending())
}

func TestRadio_CommandPassthrough(t *testing.T) {
	r, p := newTestRadio(t, DefaultConfig())
	call, err := r.Command(context.Background(), "VR", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{'V', 'R'}, p.last()[5:7])

	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: call.FrameID, Command: "VR", Data: []byte{0x90, 0x0A}}))
	res, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x0A}, res.Data)
	assert.Empty(t, pendingEvents(r))

	_, err = r.Command(context.Background(), "V", nil)
	assert.ErrorIs(t, err, xbee.ErrInvalidCommand)
	assert.Equal(t, 0, r.Pending())
}

func TestRadio_UnhandledCommandStillResolves(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	id, err := r.PostCommand(context.Background(), "VR", nil)
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: id, Command: "VR", Data: []byte{0x01}}))

	ev := nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagUnhandledCommand, ev.Diagnostic)
	assert.ErrorIs(t, ev.Err, xbee.ErrUnhandledCommandResponse)
	ev = nextEvent(t, r, EventCommandResponse)
	assert.Equal(t, "VR", ev.Command.Command)
	assert.Equal(t, 0, r.Pending())
}

func TestRadio_RequestTimeoutFreesID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	r, _ := newTestRadio(t, cfg)
	call, err := r.NodeIdentifier(context.Background())
	require.NoError(t, err)
	_, err = call.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, 0, r.Pending())

	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: call.FrameID, Command: "NI", Data: []byte("late")}))
	ev := nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagOrphanResponse, ev.Diagnostic)
}

func TestRadio_WriteFailureIsSynchronous(t *testing.T) {
	r, p := newTestRadio(t, DefaultConfig())
	p.writeErr = errors.New("device unplugged")

	call, err := r.Send(context.Background(), 0x42, []byte("x"))
	assert.Nil(t, call)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "write", te.Op)
	assert.Equal(t, 0, r.Pending())

	ev := nextEvent(t, r, EventTransportError)
	assert.Contains(t, ev.Error, "device unplugged")
}

func TestRadio_TimeoutStartsAfterWrite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 30 * time.Millisecond
	p := &gatedPort{gate: make(chan struct{})}
	r := New(p, cfg)
	t.Cleanup(func() { _ = r.Close() })

	type sent struct {
		call *Call[TransmitResult]
		err  error
	}
	out := make(chan sent, 1)
	go func() {
		call, err := r.Send(context.Background(), 0x42, []byte("slow"))
		out <- sent{call, err}
	}()

	// 写出被阻塞的时间远超请求超时，ID 仍归这次请求所有
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, r.Pending())

	close(p.gate)
	s := <-out
	require.NoError(t, s.err)
	r.Feed(wire(t, xbee.TransmitStatus{FrameID: s.call.FrameID, NetworkAddress: 0xFFFE}))
	res, err := s.call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.True(t, res.Delivered())
	assert.Equal(t, 0, r.Pending())
}

func TestRadio_WriteFailureKeepsOtherRequests(t *testing.T) {
	r, p := newTestRadio(t, DefaultConfig())
	ok, err := r.NodeIdentifier(context.Background())
	require.NoError(t, err)

	p.mu.Lock()
	p.writeErr = errors.New("device unplugged")
	p.mu.Unlock()
	_, err = r.Send(context.Background(), 0x42, []byte("x"))
	require.Error(t, err)
	assert.Equal(t, 1, r.Pending())

	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: ok.FrameID, Command: "NI", Data: []byte("node7")}))
	label, err := ok.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "node7", label)
}

func TestRadio_DiscoveryTimeoutSetThroughPassthrough(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	require.Equal(t, 13*time.Second, r.DiscoveryDefault())

	call, err := r.Command(context.Background(), "NT", []byte{0x00, 0x32})
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: call.FrameID, Command: "NT"}))
	_, err = call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, r.DiscoveryDefault())

	id, err := r.PostCommand(context.Background(), "NT", []byte{0x00, 0x46})
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: id, Command: "NT"}))
	nextEvent(t, r, EventCommandResponse)
	assert.Equal(t, 7*time.Second, r.DiscoveryDefault())

	// 被拒绝的设置不改变缓存值
	call, err = r.Command(context.Background(), "NT", []byte{0x00, 0x01})
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: call.FrameID, Command: "NT", Status: xbee.ATStatusInvalidParameter}))
	_, err = call.Wait(waitCtx(t))
	var ce *xbee.CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 7*time.Second, r.DiscoveryDefault())
}

func TestRadio_MirrorPolicy(t *testing.T) {
	t.Run("continuation only", func(t *testing.T) {
		r, _ := newTestRadio(t, DefaultConfig())
		call, err := r.Send(context.Background(), 0x42, nil)
		require.NoError(t, err)
		r.Feed(wire(t, xbee.TransmitStatus{FrameID: call.FrameID}))
		_, err = call.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Empty(t, pendingEvents(r))
	})
	t.Run("mirrored", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MirrorResults = true
		r, _ := newTestRadio(t, cfg)
		call, err := r.Send(context.Background(), 0x42, nil)
		require.NoError(t, err)
		r.Feed(wire(t, xbee.TransmitStatus{FrameID: call.FrameID, Delivery: xbee.DeliveryRouteNotFound}))
		res, err := call.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.False(t, res.Delivered())
		ev := nextEvent(t, r, EventTransmitStatus)
		assert.Equal(t, xbee.DeliveryRouteNotFound, ev.Transmit.Delivery)
		assert.Equal(t, "route not found", ev.Detail)
	})
	t.Run("fire and forget", func(t *testing.T) {
		r, _ := newTestRadio(t, DefaultConfig())
		id, err := r.Post(context.Background(), 0x42, []byte("x"))
		require.NoError(t, err)
		r.Feed(wire(t, xbee.TransmitStatus{FrameID: id, Retries: 2}))
		ev := nextEvent(t, r, EventTransmitStatus)
		assert.Equal(t, id, ev.FrameID)
		assert.Equal(t, uint8(2), ev.Transmit.Retries)
	})
}

func TestRadio_UnsolicitedFrames(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())

	r.Feed(wire(t, xbee.ReceivePacket{Source: 0x0013A20040A1B2C3, NetworkAddress: 0xFFFE, Options: xbee.ReceiveOptionBroadcast, Data: []byte("ping")}))
	ev := nextEvent(t, r, EventMessageReceived)
	assert.True(t, ev.Message.Broadcast)
	assert.Equal(t, xbee.Address(0x0013A20040A1B2C3), ev.Message.Source)
	assert.Equal(t, []byte("ping"), ev.Message.Data)
	assert.NotEmpty(t, ev.ID)

	r.Feed(wire(t, xbee.ModemStatus{Status: xbee.ModemWatchdogReset}))
	ev = nextEvent(t, r, EventModemStatus)
	assert.Equal(t, xbee.ModemWatchdogReset, *ev.ModemStatus)
	assert.Equal(t, "watchdog timer reset", ev.Detail)

	r.Feed(wire(t, xbee.RemoteATCommandResponse{FrameID: 3, Source: 0x42, Command: "D0"}))
	ev = nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagRemoteATResponse, ev.Diagnostic)

	r.Feed(wire(t, xbee.TransmitRequest{FrameID: 1, Destination: 0x42}))
	ev = nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagUnknownFrameType, ev.Diagnostic)

	body := []byte{0x95, 0x01}
	raw, err := xbee.Wrap(body)
	require.NoError(t, err)
	r.Feed(raw)
	ev = nextEvent(t, r, EventDiagnostic)
	assert.Equal(t, DiagUnknownFrameType, ev.Diagnostic)
}

func TestRadio_DiscoveryTimeoutHelpers(t *testing.T) {
	r, _ := newTestRadio(t, DefaultConfig())
	assert.Equal(t, 13*time.Second, r.DiscoveryDefault())

	call, err := r.DiscoveryTimeout(context.Background())
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: call.FrameID, Command: "NT", Data: []byte{0x00, 0x3C}}))
	d, err := call.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, d)
	assert.Equal(t, 6*time.Second, r.DiscoveryDefault())

	set, err := r.SetDiscoveryTimeout(context.Background(), 8*time.Second)
	require.NoError(t, err)
	r.Feed(wire(t, xbee.ATCommandResponse{FrameID: set.FrameID, Command: "NT"}))
	d, err = set.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 8*time.Second, d)
	assert.Equal(t, 8*time.Second, r.DiscoveryDefault())

	_, err = r.SetDiscoveryTimeout(context.Background(), time.Millisecond)
	assert.Error(t, err)
}

func TestRadio_CloseFailsPending(t *testing.T) {
	p := &fakePort{}
	r := New(p, DefaultConfig())
	call, err := r.NodeIdentifier(context.Background())
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = call.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Send(context.Background(), 0x42, nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, ok := <-r.Events()
	assert.False(t, ok)
	assert.NoError(t, r.Close())
}

func TestRadio_EventsDroppedWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventBuffer = 1
	obs := &countingObserver{}
	r := New(&fakePort{}, cfg, WithObserver(obs))
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.Feed(wire(t, xbee.ModemStatus{Status: xbee.ModemHardwareReset}))
	}
	assert.Equal(t, 2, obs.dropped)
	assert.Equal(t, 3, obs.frames)
}

type countingObserver struct {
	nopObserver
	mu      sync.Mutex
	dropped int
	frames  int
}

func (o *countingObserver) EventDropped() {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

func (o *countingObserver) FrameReceived(xbee.FrameType) {
	o.mu.Lock()
	o.frames++
	o.mu.Unlock()
}

package radio

import (
	"context"
	"time"

	"github.com/taoyao-code/xbee-digimesh/internal/correlation"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// Send 向指定节点发送数据，结果为发送状态
func (r *Radio) Send(ctx context.Context, dest xbee.Address, data []byte) (*Call[TransmitResult], error) {
	return r.transmit(ctx, dest, false, data)
}

// Broadcast 广播数据
func (r *Radio) Broadcast(ctx context.Context, data []byte) (*Call[TransmitResult], error) {
	return r.transmit(ctx, xbee.BroadcastAddress, true, data)
}

func (r *Radio) transmit(ctx context.Context, dest xbee.Address, broadcast bool, data []byte) (*Call[TransmitResult], error) {
	call := newCall[TransmitResult]()
	id, err := r.submit(ctx, correlation.Entry{
		Mode:    correlation.Single,
		Label:   labelTransmit,
		Timeout: r.cfg.RequestTimeout,
		Deliver: func(res correlation.Result) {
			tr, _ := res.Value.(TransmitResult)
			tr.FrameID = res.ID
			call.complete(tr, res.Err)
			if r.cfg.MirrorResults {
				r.emitTransmit(tr, res.Err)
			}
		},
	}, func(id uint8) xbee.Frame {
		return xbee.TransmitRequest{FrameID: id, Destination: dest, Broadcast: broadcast, Data: data}
	})
	if err != nil {
		return nil, err
	}
	call.FrameID = id
	return call, nil
}

// Post 发送数据但不等待结果；发送状态只通过事件流通知
func (r *Radio) Post(ctx context.Context, dest xbee.Address, data []byte) (uint8, error) {
	return r.submit(ctx, correlation.Entry{
		Mode:    correlation.FireAndForget,
		Label:   labelTransmit,
		Timeout: r.cfg.RequestTimeout,
		Deliver: func(res correlation.Result) {
			tr, _ := res.Value.(TransmitResult)
			tr.FrameID = res.ID
			r.emitTransmit(tr, res.Err)
		},
	}, func(id uint8) xbee.Frame {
		return xbee.TransmitRequest{FrameID: id, Destination: dest, Broadcast: dest.IsBroadcast(), Data: data}
	})
}

// SendNoAck 以帧 ID 0 发送，设备不回发送状态，不占用关联表
func (r *Radio) SendNoAck(ctx context.Context, dest xbee.Address, data []byte) error {
	if r.isClosed() {
		return ErrClosed
	}
	return r.writeFrame(ctx, xbee.TransmitRequest{Destination: dest, Broadcast: dest.IsBroadcast(), Data: data})
}

func (r *Radio) emitTransmit(tr TransmitResult, err error) {
	r.emit(Event{
		Kind:     EventTransmitStatus,
		FrameID:  tr.FrameID,
		Transmit: &tr,
		Detail:   r.text.DeliveryText(tr.Delivery),
		Err:      err,
	})
}

// Command 通用本地 AT 命令，返回原始响应
// 非零状态以 *xbee.CommandError 完成
func (r *Radio) Command(ctx context.Context, command string, parameter []byte) (*Call[CommandResult], error) {
	return submitCommand(ctx, r, command, parameter, labelPassthrough, func(cr CommandResult) (CommandResult, error) {
		return cr, nil
	})
}

// PostCommand 发送本地 AT 命令，响应只通过事件流通知
func (r *Radio) PostCommand(ctx context.Context, command string, parameter []byte) (uint8, error) {
	return r.submit(ctx, correlation.Entry{
		Mode:      correlation.FireAndForget,
		Label:     command,
		Timeout:   r.cfg.RequestTimeout,
		Parameter: parameter,
		Deliver: func(res correlation.Result) {
			cr, _ := res.Value.(CommandResult)
			r.emitCommand(res.ID, command, cr, res.Err)
		},
	}, func(id uint8) xbee.Frame {
		return xbee.ATCommand{FrameID: id, Command: command, Parameter: parameter}
	})
}

// NodeIdentifier 查询本机 NI
func (r *Radio) NodeIdentifier(ctx context.Context) (*Call[string], error) {
	return submitCommand(ctx, r, xbee.CmdNodeIdentifier, nil, xbee.CmdNodeIdentifier, func(cr CommandResult) (string, error) {
		return string(cr.Data), nil
	})
}

// SetNodeIdentifier 设置本机 NI（最长 20 字符，由设备校验）
func (r *Radio) SetNodeIdentifier(ctx context.Context, label string) (*Call[struct{}], error) {
	return submitCommand(ctx, r, xbee.CmdNodeIdentifier, []byte(label), xbee.CmdNodeIdentifier, func(CommandResult) (struct{}, error) {
		return struct{}{}, nil
	})
}

// DiscoveryTimeout 查询设备 NT；成功后更新缓存的默认值
func (r *Radio) DiscoveryTimeout(ctx context.Context) (*Call[time.Duration], error) {
	return submitCommand(ctx, r, xbee.CmdDiscoveryTimeout, nil, xbee.CmdDiscoveryTimeout, func(cr CommandResult) (time.Duration, error) {
		return xbee.ParseDiscoveryTimeout(cr.Data)
	})
}

// SetDiscoveryTimeout 设置设备 NT；成功后更新缓存的默认值
func (r *Radio) SetDiscoveryTimeout(ctx context.Context, d time.Duration) (*Call[time.Duration], error) {
	param, err := xbee.EncodeDiscoveryTimeout(d)
	if err != nil {
		return nil, err
	}
	set, _ := xbee.ParseDiscoveryTimeout(param)
	return submitCommand(ctx, r, xbee.CmdDiscoveryTimeout, param, xbee.CmdDiscoveryTimeout, func(cr CommandResult) (time.Duration, error) {
		// 设置成功的响应不带数据
		if len(cr.Data) == 0 {
			return set, nil
		}
		return xbee.ParseDiscoveryTimeout(cr.Data)
	})
}

func (r *Radio) emitCommand(id uint8, command string, cr CommandResult, err error) {
	if cr.Command == "" {
		cr.Command = command
	}
	cr.FrameID = id
	ev := Event{Kind: EventCommandResponse, FrameID: id, Command: &cr, Err: err}
	if err == nil {
		ev.Detail = r.text.CommandText(cr.Status)
	}
	r.emit(ev)
}

// submitCommand 单响应 AT 命令；convert 把原始响应转换为调用方需要的值
func submitCommand[T any](ctx context.Context, r *Radio, command string, parameter []byte, label string, convert func(CommandResult) (T, error)) (*Call[T], error) {
	call := newCall[T]()
	id, err := r.submit(ctx, correlation.Entry{
		Mode:      correlation.Single,
		Label:     label,
		Timeout:   r.cfg.RequestTimeout,
		Parameter: parameter,
		Deliver: func(res correlation.Result) {
			cr, _ := res.Value.(CommandResult)
			if res.Err != nil {
				var zero T
				call.complete(zero, res.Err)
			} else {
				call.complete(convert(cr))
			}
			if r.cfg.MirrorResults {
				r.emitCommand(res.ID, command, cr, res.Err)
			}
		},
	}, func(id uint8) xbee.Frame {
		return xbee.ATCommand{FrameID: id, Command: command, Parameter: parameter}
	})
	if err != nil {
		return nil, err
	}
	call.FrameID = id
	return call, nil
}

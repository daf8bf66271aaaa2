package radio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/xbee-digimesh/internal/correlation"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// Discover 节点发现
// 设备对每个节点各回一条 ND 响应（同一帧 ID），截止时间到达时按到达顺序交付全部节点。
// timeout <= 0 时截止时间为缓存的 NT 值加余量；截止后到达的响应作为孤儿诊断上报
func (r *Radio) Discover(ctx context.Context, timeout time.Duration) (*Call[[]xbee.NodeDescriptor], error) {
	if timeout <= 0 {
		timeout = r.DiscoveryDefault() + r.cfg.DiscoveryMargin
	}
	call := newCall[[]xbee.NodeDescriptor]()
	id, err := r.submit(ctx, correlation.Entry{
		Mode:    correlation.Accumulating,
		Label:   xbee.CmdNodeDiscover,
		Timeout: timeout,
		Deliver: func(res correlation.Result) {
			nodes := make([]xbee.NodeDescriptor, 0, len(res.Items))
			for _, it := range res.Items {
				if n, ok := it.(xbee.NodeDescriptor); ok {
					nodes = append(nodes, n)
				}
			}
			r.log.Info("discovery complete", zap.Uint8("frame_id", res.ID), zap.Int("nodes", len(nodes)), zap.Error(res.Err))
			call.complete(nodes, res.Err)
			if r.cfg.MirrorResults {
				r.emit(Event{Kind: EventDiscoveryComplete, FrameID: res.ID, Nodes: nodes, Err: res.Err})
			}
		},
	}, func(id uint8) xbee.Frame {
		return xbee.ATCommand{FrameID: id, Command: xbee.CmdNodeDiscover}
	})
	if err != nil {
		return nil, err
	}
	call.FrameID = id
	r.log.Debug("discovery started", zap.Uint8("frame_id", id), zap.Duration("deadline", timeout))
	return call, nil
}

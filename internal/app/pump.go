package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/xbee-digimesh/internal/radio"
)

// SinkErrorReporter 下游失败计数（metrics.AppMetrics）
type SinkErrorReporter interface {
	SinkError(sink string)
}

// Pump 从引擎事件流读取并依次交给各下游
// 单个下游失败只计数记日志，不影响其他下游
type Pump struct {
	sinks   []Sink
	metrics SinkErrorReporter
	log     *zap.Logger
	// timeout 单个下游处理单个事件的上限
	timeout time.Duration
}

// NewPump metrics、log 可为 nil
func NewPump(sinks []Sink, metrics SinkErrorReporter, log *zap.Logger) *Pump {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pump{sinks: sinks, metrics: metrics, log: log, timeout: 5 * time.Second}
}

// Run 直到事件流关闭或 ctx 取消
func (p *Pump) Run(ctx context.Context, events <-chan radio.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.logEvent(ev)
			p.dispatch(ctx, ev)
		}
	}
}

func (p *Pump) dispatch(ctx context.Context, ev radio.Event) {
	for _, s := range p.sinks {
		sctx, cancel := context.WithTimeout(ctx, p.timeout)
		err := s.Handle(sctx, ev)
		cancel()
		if err != nil {
			if p.metrics != nil {
				p.metrics.SinkError(s.Name())
			}
			p.log.Warn("event sink failed",
				zap.String("sink", s.Name()),
				zap.String("kind", string(ev.Kind)),
				zap.String("event_id", ev.ID),
				zap.Error(err))
		}
	}
}

// logEvent 事件按类别落日志
func (p *Pump) logEvent(ev radio.Event) {
	switch ev.Kind {
	case radio.EventTransportError:
		p.log.Error("serial transport error", zap.Error(ev.Err))
	case radio.EventModemStatus:
		p.log.Info("modem status", zap.String("detail", ev.Detail))
	case radio.EventNodeDiscovered:
		if ev.Node != nil {
			p.log.Info("node discovered",
				zap.Stringer("address", ev.Node.Address),
				zap.String("ni", ev.Node.NodeIdentifier))
		}
	case radio.EventMessageReceived:
		if ev.Message != nil {
			p.log.Debug("message received",
				zap.Stringer("source", ev.Message.Source),
				zap.Int("len", len(ev.Message.Data)))
		}
	case radio.EventOpen, radio.EventClosed:
		p.log.Info("radio " + string(ev.Kind))
	}
}

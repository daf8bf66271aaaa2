package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/xbee-digimesh/internal/config"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
)

// publishConn *nats.Conn 的发布子集
type publishConn interface {
	Publish(subject string, data []byte) error
}

// Publisher 将事件发布到 NATS
// 每个事件发两次：<prefix>.<kind> 与 <prefix>.all
type Publisher struct {
	conn   publishConn
	nc     *nats.Conn
	prefix string
}

// Connect 连接 NATS，断线自动重连并记录日志
func Connect(cfg cfgpkg.NATSConfig, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	name := cfg.Name
	if name == "" {
		name = "digimeshd"
	}
	wait := cfg.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.ReconnectWait(wait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p := newPublisher(nc, cfg.SubjectPrefix)
	p.nc = nc
	return p, nil
}

func newPublisher(conn publishConn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "xbee.events"
	}
	return &Publisher{conn: conn, prefix: prefix}
}

// Subject 事件对应的主题
func (p *Publisher) Subject(kind radio.EventKind) string {
	return p.prefix + "." + string(kind)
}

// Publish 发布事件
func (p *Publisher) Publish(ev radio.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Kind), data); err != nil {
		return err
	}
	return p.conn.Publish(p.prefix+".all", data)
}

// Ping 连接状态检查
func (p *Publisher) Ping(ctx context.Context) error {
	if p.nc == nil {
		return nil
	}
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats status %s", p.nc.Status())
	}
	return p.nc.FlushWithContext(ctx)
}

// Close 刷出缓冲后关闭
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

package app

import (
	"context"
	"time"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
)

// Sink 事件下游
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev radio.Event) error
}

type sinkFunc struct {
	name string
	fn   func(ctx context.Context, ev radio.Event) error
}

func (s sinkFunc) Name() string { return s.name }

func (s sinkFunc) Handle(ctx context.Context, ev radio.Event) error { return s.fn(ctx, ev) }

// NewSink 用函数构造下游
func NewSink(name string, fn func(ctx context.Context, ev radio.Event) error) Sink {
	return sinkFunc{name: name, fn: fn}
}

// EventRecorder 事件流水（pg.Journal）
type EventRecorder interface {
	Record(ctx context.Context, ev radio.Event) error
}

// JournalSink 记录全部事件
func JournalSink(j EventRecorder) Sink {
	return NewSink("journal", j.Record)
}

// NodeUpserter 节点目录（gormrepo.Repository）
type NodeUpserter interface {
	UpsertNodes(ctx context.Context, nodes []xbee.NodeDescriptor, seenAt time.Time) error
}

// discoveredNodes 从发现类事件中取出节点
func discoveredNodes(ev radio.Event) []xbee.NodeDescriptor {
	switch ev.Kind {
	case radio.EventNodeDiscovered:
		if ev.Node != nil {
			return []xbee.NodeDescriptor{*ev.Node}
		}
	case radio.EventDiscoveryComplete:
		return ev.Nodes
	}
	return nil
}

func seenAt(ev radio.Event) time.Time {
	if ev.Time.IsZero() {
		return time.Now()
	}
	return ev.Time
}

// DirectorySink 发现的节点写入目录
func DirectorySink(dir NodeUpserter) Sink {
	return NewSink("directory", func(ctx context.Context, ev radio.Event) error {
		nodes := discoveredNodes(ev)
		if len(nodes) == 0 {
			return nil
		}
		return dir.UpsertNodes(ctx, nodes, seenAt(ev))
	})
}

// NodePutter 节点缓存（redis.NodeCache）
type NodePutter interface {
	Put(ctx context.Context, seenAt time.Time, nodes ...xbee.NodeDescriptor) error
}

// NodeCacheSink 发现的节点写入缓存
func NodeCacheSink(cache NodePutter) Sink {
	return NewSink("node_cache", func(ctx context.Context, ev radio.Event) error {
		nodes := discoveredNodes(ev)
		if len(nodes) == 0 {
			return nil
		}
		return cache.Put(ctx, seenAt(ev), nodes...)
	})
}

// ChannelPublisher Redis 频道发布（redis.Publisher）
type ChannelPublisher interface {
	Publish(ctx context.Context, ev radio.Event) (int64, error)
}

// RedisPublishSink 事件发布到 Redis 频道
func RedisPublishSink(p ChannelPublisher) Sink {
	return NewSink("redis_pubsub", func(ctx context.Context, ev radio.Event) error {
		_, err := p.Publish(ctx, ev)
		return err
	})
}

// BusPublisher NATS 发布（eventbus.Publisher）
type BusPublisher interface {
	Publish(ev radio.Event) error
}

// NATSSink 事件发布到 NATS
func NATSSink(p BusPublisher) Sink {
	return NewSink("nats", func(_ context.Context, ev radio.Event) error {
		return p.Publish(ev)
	})
}

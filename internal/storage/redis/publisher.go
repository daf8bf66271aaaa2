package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taoyao-code/xbee-digimesh/internal/radio"
)

// Publisher 将事件以 JSON 发布到 Redis 频道
type Publisher struct {
	client  *Client
	channel string
}

// NewPublisher channel 为空时使用 <prefix>events
func NewPublisher(client *Client, channel string) *Publisher {
	if channel == "" {
		channel = client.Key("events")
	}
	return &Publisher{client: client, channel: channel}
}

// Channel 频道名
func (p *Publisher) Channel() string { return p.channel }

// Publish 发布一个事件，返回收到的订阅者数量
func (p *Publisher) Publish(ctx context.Context, ev radio.Event) (int64, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, p.channel, data).Result()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
)

// CachedNode 缓存中的节点
type CachedNode struct {
	xbee.NodeDescriptor
	SeenAt time.Time `json:"seen_at"`
}

// NodeCache 最近发现的节点（每个节点一个键，带 TTL；集合做索引）
type NodeCache struct {
	client *Client
	ttl    time.Duration
}

// NewNodeCache ttl <= 0 时默认 10 分钟
func NewNodeCache(client *Client, ttl time.Duration) *NodeCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &NodeCache{client: client, ttl: ttl}
}

func (c *NodeCache) indexKey() string { return c.client.Key("nodes") }

func (c *NodeCache) nodeKey(addr string) string { return c.client.Key("node", addr) }

// Put 写入节点并刷新 TTL
func (c *NodeCache) Put(ctx context.Context, seenAt time.Time, nodes ...xbee.NodeDescriptor) error {
	if len(nodes) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, n := range nodes {
		data, err := json.Marshal(CachedNode{NodeDescriptor: n, SeenAt: seenAt})
		if err != nil {
			return fmt.Errorf("marshal node: %w", err)
		}
		addr := n.Address.String()
		pipe.Set(ctx, c.nodeKey(addr), data, c.ttl)
		pipe.SAdd(ctx, c.indexKey(), addr)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Get 查询单个节点；不存在返回 (nil, nil)
func (c *NodeCache) Get(ctx context.Context, addr xbee.Address) (*CachedNode, error) {
	data, err := c.client.Get(ctx, c.nodeKey(addr.String())).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var n CachedNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal node: %w", err)
	}
	return &n, nil
}

// List 返回所有未过期节点（按地址排序），顺带清理索引中已过期的地址
func (c *NodeCache) List(ctx context.Context) ([]CachedNode, error) {
	addrs, err := c.client.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, nil
	}
	sort.Strings(addrs)

	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = c.nodeKey(a)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]CachedNode, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, addrs[i])
			continue
		}
		var n CachedNode
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			expired = append(expired, addrs[i])
			continue
		}
		out = append(out, n)
	}
	if len(expired) > 0 {
		_ = c.client.SRem(ctx, c.indexKey(), expired...).Err()
	}
	return out, nil
}

package radio

import (
	"context"
	"sync"
)

// Call 一次关联请求的结果，恰好完成一次
type Call[T any] struct {
	// FrameID 请求使用的帧 ID
	FrameID uint8

	once sync.Once
	done chan struct{}
	val  T
	err  error
}

func newCall[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

func (c *Call[T]) complete(v T, err error) {
	c.once.Do(func() {
		c.val, c.err = v, err
		close(c.done)
	})
}

// Done 完成时关闭
func (c *Call[T]) Done() <-chan struct{} { return c.done }

// Result 返回结果；未完成时返回零值与 nil
func (c *Call[T]) Result() (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	default:
		var zero T
		return zero, nil
	}
}

// Wait 阻塞直到完成或 ctx 结束
// ctx 结束不会取消请求，帧 ID 仍由超时或响应释放
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Package tcpport 通过 TCP 连接串口服务器（ser2net、Digi Connect 等）上的模块
package tcpport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Config TCP 链路参数
type Config struct {
	Addr         string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Conn 满足 radio.Port 与 io.Reader
// 读超时以 (0, nil) 返回，读循环借此检查 ctx
type Conn struct {
	c   net.Conn
	cfg Config
}

// Dial 建立连接
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	if cfg.Addr == "" {
		return nil, errors.New("tcpport: address not configured")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 200 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	c, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("tcpport: dial %s: %w", cfg.Addr, err)
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &Conn{c: c, cfg: cfg}, nil
}

// Read 读取入站字节；读超时返回 (0, nil)
func (p *Conn) Read(b []byte) (int, error) {
	_ = p.c.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout))
	n, err := p.c.Read(b)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return n, nil
		}
	}
	return n, err
}

// Write 写出一帧，受写超时约束
func (p *Conn) Write(b []byte) (int, error) {
	_ = p.c.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
	return p.c.Write(b)
}

// Drain TCP 写返回即已交给内核
func (p *Conn) Drain() error { return nil }

// Close 关闭连接
func (p *Conn) Close() error { return p.c.Close() }

// RemoteAddr 远端地址
func (p *Conn) RemoteAddr() net.Addr { return p.c.RemoteAddr() }

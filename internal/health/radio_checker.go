package health

import (
	"context"
	"fmt"
	"time"
)

// maxFrameIDs 可同时在途的请求数
const maxFrameIDs = 255

// RadioChecker 串口链路与帧 ID 占用检查
type RadioChecker struct {
	ready   *Readiness
	pending func() int
}

// NewRadioChecker pending 通常为 (*radio.Radio).Pending
func NewRadioChecker(ready *Readiness, pending func() int) *RadioChecker {
	return &RadioChecker{ready: ready, pending: pending}
}

func (c *RadioChecker) Name() string { return "radio" }

func (c *RadioChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	pending := c.pending()
	utilization := float64(pending) / maxFrameIDs
	details := map[string]any{
		"pending_requests": pending,
		"utilization":      fmt.Sprintf("%.1f%%", utilization*100),
	}

	if !c.ready.LinkReady() {
		return CheckResult{Status: StatusUnhealthy, Message: "serial link down", Details: details, Latency: time.Since(start)}
	}
	status, message := StatusHealthy, "ok"
	if utilization > 0.8 {
		// 表满只是暂时拒绝新请求，不影响收包
		status, message = StatusDegraded, "frame id table near full"
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}

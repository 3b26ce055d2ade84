// Package retry 提供统一的重试策略（次数、指数退避、抖动），
// 供 REST 请求与 WebSocket 重连共用。
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy 重试策略
type Policy struct {
	MaxAttempts int           // 最大尝试次数（含首次）
	BaseDelay   time.Duration // 初始延迟
	MaxDelay    time.Duration // 延迟上限
	Jitter      float64       // 抖动比例 [0,1)，0 表示无抖动
}

// Default 与连接类操作匹配的默认策略。
var Default = Policy{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
	Jitter:      0.2,
}

// Delay 返回第 attempt 次失败后的等待时间（attempt 从 0 开始）。
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		f := 1 + p.Jitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * f)
	}
	return d
}

// Do 按策略执行 fn，直到成功、尝试耗尽或 ctx 取消。
// 返回最后一次的错误。
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay(attempt - 1)):
			}
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

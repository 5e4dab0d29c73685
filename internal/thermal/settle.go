package thermal

import (
	"sync"
	"time"
)

// SettleTimer 一次性延时定时器, 只提供剩余时间查询
type SettleTimer struct {
	mu       sync.Mutex
	now      func() time.Time
	deadline time.Time
}

// NewSettleTimer 创建定时器, now 为 nil 时使用系统时钟
func NewSettleTimer(now func() time.Time) *SettleTimer {
	if now == nil {
		now = time.Now
	}
	return &SettleTimer{now: now}
}

// Start 从当前时刻开始计时, 重复调用会重新计时
func (t *SettleTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = t.now().Add(d)
}

// Remaining 剩余时间, 已到期或未启动时为 0
func (t *SettleTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.deadline.IsZero() {
		return 0
	}
	return max(t.deadline.Sub(t.now()), 0)
}

// Package power 跟踪系统电源状态与 CS 状态
package power

import (
	"sync"
	"sync/atomic"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// Oracle 电源状态查询
type Oracle interface {
	CurrentPowerState() types.PowerState
	IsConnectedStandby() bool
}

// Tracker 由电源时序/主机命令写入, 温控任务读取
type Tracker struct {
	state atomic.Uint32
	cs    atomic.Bool

	mu       sync.Mutex
	onCSExit []func()
}

var _ Oracle = (*Tracker)(nil)

// NewTracker 创建状态跟踪器
func NewTracker(initial types.PowerState) *Tracker {
	t := &Tracker{}
	t.state.Store(uint32(initial))
	return t
}

// CurrentPowerState 当前电源状态
func (t *Tracker) CurrentPowerState() types.PowerState {
	return types.PowerState(t.state.Load())
}

// IsConnectedStandby 是否处于 CS
func (t *Tracker) IsConnectedStandby() bool {
	return t.cs.Load()
}

// SetPowerState 电源时序切换状态
func (t *Tracker) SetPowerState(state types.PowerState) {
	t.state.Store(uint32(state))
}

// SetConnectedStandby 进入或退出 CS, 退出时通知订阅者
func (t *Tracker) SetConnectedStandby(enabled bool) {
	was := t.cs.Swap(enabled)
	if !was || enabled {
		return
	}

	t.mu.Lock()
	callbacks := make([]func(), len(t.onCSExit))
	copy(callbacks, t.onCSExit)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// OnCSExit 订阅 CS 退出事件
func (t *Tracker) OnCSExit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCSExit = append(t.onCSExit, fn)
}

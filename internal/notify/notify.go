// Package notify 实现 EC 到主机的告警通知队列(SCI)
package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// Kind 告警类型
type Kind uint8

const (
	KindTrip     Kind = iota // DTT 阈值状态变化
	KindThermal              // CPU 温度变化超过通知阈值
	KindCritical             // 达到关机阈值
)

func (k Kind) String() string {
	switch k {
	case KindTrip:
		return "trip"
	case KindThermal:
		return "thermal"
	case KindCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event 告警事件
type Event struct {
	Kind Kind
	Bits uint16        // KindTrip: 状态变化的位置聚合位
	Temp types.Celsius // KindThermal/KindCritical: CPU 温度
	Time time.Time
}

// Message 事件的可读描述
func (e Event) Message() string {
	switch e.Kind {
	case KindTrip:
		return fmt.Sprintf("温度阈值状态变化: %#04x", e.Bits)
	case KindCritical:
		return fmt.Sprintf("CPU 温度 %d°C 达到关机阈值", e.Temp)
	default:
		return fmt.Sprintf("CPU 温度变化: %d°C", e.Temp)
	}
}

// Sink 告警接收方
type Sink interface {
	Notify(ev Event) error
}

// Queue 有界告警队列, 队满时丢弃新事件而不阻塞温控任务
type Queue struct {
	events  chan Event
	sinks   []Sink
	logger  types.Logger
	dropped atomic.Uint64
}

// NewQueue 创建告警队列
func NewQueue(size int, logger types.Logger, sinks ...Sink) *Queue {
	return &Queue{
		events: make(chan Event, max(size, 1)),
		sinks:  sinks,
		logger: logger,
	}
}

// Enqueue 投递事件, 返回是否入队
func (q *Queue) Enqueue(ev Event) bool {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	select {
	case q.events <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Dropped 丢弃的事件数
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Events 供主机侧直接消费的事件通道
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Run 持续将事件分发给所有接收方, ctx 取消时返回
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-q.events:
			for _, sink := range q.sinks {
				if err := sink.Notify(ev); err != nil {
					q.logger.Warn("告警 %s 投递失败: %v", ev.Kind, err)
				}
			}
		}
	}
}

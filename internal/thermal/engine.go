// Package thermal 实现温控周期任务: 传感器轮询、阈值告警、风扇仲裁与状态发布
package thermal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TIANLI0/ec-thermalmgmt/internal/arbiter"
	"github.com/TIANLI0/ec-thermalmgmt/internal/hoststatus"
	"github.com/TIANLI0/ec-thermalmgmt/internal/notify"
	"github.com/TIANLI0/ec-thermalmgmt/internal/power"
	"github.com/TIANLI0/ec-thermalmgmt/internal/sensor"
	"github.com/TIANLI0/ec-thermalmgmt/internal/trip"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// State 周期任务状态
type State uint32

const (
	StateInit State = iota
	StateNormal
	StateLowPower
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateNormal:
		return "STEADY_NORMAL"
	case StateLowPower:
		return "STEADY_LOW_POWER"
	default:
		return "unknown"
	}
}

// StatusSink 状态块的进程外镜像
type StatusSink interface {
	Write(b *hoststatus.Block) error
}

// AlertSink 主机告警队列
type AlertSink interface {
	Enqueue(ev notify.Event) bool
}

// ShutdownHandler 温度达到关机阈值时调用
type ShutdownHandler func(temp types.Celsius)

// Deps 周期任务的外部协作方
type Deps struct {
	Source    sensor.Source
	Actuator  arbiter.Actuator
	Power     power.Oracle
	Overrides *arbiter.Overrides
	Status    *hoststatus.Block
	Sink      StatusSink      // 可选
	Alerts    AlertSink       // 可选
	Shutdown  ShutdownHandler // 可选
	Locations []types.SensorLocation
	Clock     func() time.Time // 可选, 测试注入
	Logger    types.Logger
}

// Engine 温控周期任务
//
// 周期内状态只由 Run/RunCycle 所在的单个 goroutine 访问;
// 主机命令通过 Overrides、trip.Table 和原子字段交互。
type Engine struct {
	cfg       types.AppConfig
	logger    types.Logger
	source    sensor.Source
	power     power.Oracle
	overrides *arbiter.Overrides
	arbiter   *arbiter.Arbiter
	trips     *trip.Table
	status    *hoststatus.Block
	sink      StatusSink
	alerts    AlertSink
	shutdown  ShutdownHandler

	locations []types.SensorLocation
	fans      []types.FanChannel

	settle   *SettleTimer
	wake     chan struct{}
	initOnce sync.Once

	state    atomic.Uint32
	cycles   atomic.Uint64
	critTemp atomic.Int32

	readings       map[types.SensorLocation]types.DeciCelsius
	cpuTemp        types.Celsius
	lastGoodCPU    types.Celsius
	haveGoodCPU    bool
	probeFailures  int
	forceMax       bool
	prevNotifyTemp types.Celsius
	shutdownSent   bool
}

// New 创建周期任务, 阈值表按平台默认值初始化
func New(cfg types.AppConfig, deps Deps) *Engine {
	channels := make([]arbiter.Channel, 0, len(cfg.Fans))
	fans := make([]types.FanChannel, 0, len(cfg.Fans))
	for _, f := range cfg.Fans {
		channels = append(channels, arbiter.Channel{
			ID:          types.FanChannel(f.Channel),
			Name:        f.Name,
			StartupDuty: f.StartupDuty,
			FollowsCPU:  f.FollowsCPU,
		})
		fans = append(fans, types.FanChannel(f.Channel))
	}

	overrides := deps.Overrides
	if overrides == nil {
		overrides = &arbiter.Overrides{}
	}
	status := deps.Status
	if status == nil {
		status = hoststatus.NewBlock()
	}

	e := &Engine{
		cfg:       cfg,
		logger:    deps.Logger,
		source:    deps.Source,
		power:     deps.Power,
		overrides: overrides,
		trips:     trip.NewTable(deps.Locations, cfg.Threshold),
		status:    status,
		sink:      deps.Sink,
		alerts:    deps.Alerts,
		shutdown:  deps.Shutdown,
		locations: deps.Locations,
		fans:      fans,
		settle:    NewSettleTimer(deps.Clock),
		wake:      make(chan struct{}, 1),
		readings:  make(map[types.SensorLocation]types.DeciCelsius, len(deps.Locations)),
	}
	e.arbiter = arbiter.New(arbiter.Config{
		Channels:   channels,
		Curve:      cfg.FanCurve,
		StrapDuty:  cfg.FanOverrideValue,
		FanOffTemp: cfg.BSOD.FanOffTemp,
	}, deps.Actuator, status, overrides, deps.Logger)

	e.critTemp.Store(int32(cfg.CritTemp))
	overrides.SetECSelfControl(cfg.ECFanControl)
	if cfg.ForceFanOverride {
		overrides.SetStrap(true)
	}
	return e
}

// Init 进入 INIT: 启动传感器稳定定时器并发布初始状态, 只执行一次
func (e *Engine) Init() {
	e.initOnce.Do(func() {
		e.settle.Start(e.cfg.SettleDelay())
		e.cpuTemp = e.cfg.FailSafeTemp
		e.status.PublishCPUTemp(e.cfg.FailSafeTemp)
		e.status.PublishCritTemp(e.CritTemp())
		for _, loc := range e.locations {
			if rec, ok := e.trips.Record(loc); ok {
				e.status.PublishLocation(loc, 0, rec.Status)
			}
		}
		e.logger.Info("温控任务初始化: %d 个传感器, %d 个风扇, 稳定延时 %v",
			len(e.locations), len(e.fans), e.cfg.SettleDelay())
		e.state.Store(uint32(StateNormal))
	})
}

// State 当前状态
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Cycles 已执行的周期数
func (e *Engine) Cycles() uint64 {
	return e.cycles.Load()
}

// Snapshot 主机可见状态块的当前内容
func (e *Engine) Snapshot() hoststatus.Snapshot {
	snap, _ := hoststatus.Decode(e.status.Encode())
	return snap
}

// Wake 请求立即执行下一周期(例如退出 CS), 不阻塞
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) interval() time.Duration {
	if e.power.IsConnectedStandby() {
		e.state.Store(uint32(StateLowPower))
		return e.cfg.LowPowerInterval()
	}
	e.state.Store(uint32(StateNormal))
	return e.cfg.PollInterval()
}

// Run 运行周期任务直到 ctx 取消
//
// 每次休眠都可被 Wake 立即打断, 休眠时长按进入休眠时的电源状态选择。
func (e *Engine) Run(ctx context.Context) error {
	e.Init()

	timer := time.NewTimer(e.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("温控任务退出")
			return nil
		case <-timer.C:
		case <-e.wake:
			e.logger.Debug("温控任务被唤醒")
		}

		e.RunCycle(ctx)
		timer.Reset(e.interval())
	}
}

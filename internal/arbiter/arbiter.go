// Package arbiter 在多个控制来源之间仲裁每个风扇通道的占空比
package arbiter

import (
	"github.com/TIANLI0/ec-thermalmgmt/internal/fancurve"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// Actuator 风扇执行器
type Actuator interface {
	SetDutyCycle(ch types.FanChannel, percent int) error
	ReadRPM(ch types.FanChannel) (int, error)
	SetPower(on bool) error
}

// Publisher 主机可见状态的风扇字段
type Publisher interface {
	PublishFan(ch types.FanChannel, duty, rpm int)
}

// Source 占空比来源
type Source uint8

const (
	SourceNone Source = iota
	SourceStrap
	SourceFailSafe
	SourceBSOD
	SourceHost
	SourceEC
)

func (s Source) String() string {
	switch s {
	case SourceStrap:
		return "strap"
	case SourceFailSafe:
		return "failsafe"
	case SourceBSOD:
		return "bsod"
	case SourceHost:
		return "host"
	case SourceEC:
		return "ec"
	default:
		return "none"
	}
}

// Channel 风扇通道能力
type Channel struct {
	ID          types.FanChannel
	Name        string
	StartupDuty int
	FollowsCPU  bool
}

// FanState 通道占空比状态, 只由 Arbiter 修改
type FanState struct {
	Duty    int  // 本周期决定的占空比
	Dirty   bool // Duty 尚未成功写入驱动
	Applied int  // 最近一次成功写入的占空比, -1 表示从未写入
	RPM     int  // 最近读取的转速
	Source  Source
}

// Inputs 每周期仲裁输入
type Inputs struct {
	Power            types.PowerState
	ConnectedStandby bool
	CPUTemp          types.Celsius
	ForceMax         bool // 关键温度源持续失败
}

// Config 仲裁器配置
type Config struct {
	Channels   []Channel
	Curve      []types.FanCurvePoint
	StrapDuty  int
	FanOffTemp types.Celsius // 蓝屏保护关闭温度
}

// Arbiter 控制权仲裁器
type Arbiter struct {
	logger    types.Logger
	actuator  Actuator
	publisher Publisher
	overrides *Overrides

	channels   []Channel
	curve      []types.FanCurvePoint
	strapDuty  int
	fanOffTemp types.Celsius

	states  []FanState
	memory  []fancurve.Memory
	powered bool

	bsodCrossed bool
}

// New 创建仲裁器, 每个通道以启动占空比待写入
func New(cfg Config, actuator Actuator, publisher Publisher, overrides *Overrides, logger types.Logger) *Arbiter {
	a := &Arbiter{
		logger:     logger,
		actuator:   actuator,
		publisher:  publisher,
		overrides:  overrides,
		channels:   cfg.Channels,
		curve:      cfg.Curve,
		strapDuty:  fancurve.ClampDuty(cfg.StrapDuty),
		fanOffTemp: cfg.FanOffTemp,
		states:     make([]FanState, len(cfg.Channels)),
		memory:     make([]fancurve.Memory, len(cfg.Channels)),
	}
	for i, ch := range cfg.Channels {
		a.states[i] = FanState{
			Duty:    fancurve.ClampDuty(ch.StartupDuty),
			Dirty:   true,
			Applied: -1,
		}
	}
	return a
}

// States 返回各通道状态副本
func (a *Arbiter) States() []FanState {
	out := make([]FanState, len(a.states))
	copy(out, a.states)
	return out
}

// BSODCrossed 蓝屏保护是否处于锁存状态
func (a *Arbiter) BSODCrossed() bool {
	return a.bsodCrossed
}

// Run 执行一次仲裁并驱动执行器
//
// 非 S0 或处于 CS 时只关闭风扇供电, 本周期不做任何占空比写入。
// 占空比只在与上次成功写入的值不同时下发; 转速与占空比每周期都上报。
func (a *Arbiter) Run(in Inputs) {
	if in.Power != types.PowerS0 || in.ConnectedStandby {
		if err := a.actuator.SetPower(false); err != nil {
			a.logger.Error("关闭风扇供电失败: %v", err)
		}
		if a.powered {
			a.logger.Info("系统处于 %s (CS=%v), 关闭风扇供电", in.Power, in.ConnectedStandby)
		}
		a.powered = false
		return
	}

	if err := a.actuator.SetPower(true); err != nil {
		a.logger.Error("打开风扇供电失败: %v", err)
	}
	if !a.powered {
		// 重新上电后驱动中的占空比不可信
		for i := range a.states {
			a.states[i].Dirty = true
		}
		a.powered = true
	}

	for i, ch := range a.channels {
		st := &a.states[i]
		duty, source := a.resolve(i, ch, in)
		duty = fancurve.ClampDuty(duty)

		if duty != st.Duty || source != st.Source {
			a.logger.Debug("风扇 %s: 占空比 %d -> %d (%s)", ch.Name, st.Duty, duty, source)
		}
		if duty != st.Duty {
			st.Duty = duty
			st.Dirty = true
		}
		st.Source = source

		if st.Dirty || st.Applied != st.Duty {
			if err := a.actuator.SetDutyCycle(ch.ID, st.Duty); err != nil {
				a.logger.Error("设置风扇 %s 占空比 %d 失败: %v", ch.Name, st.Duty, err)
				st.Dirty = true
			} else {
				st.Applied = st.Duty
				st.Dirty = false
			}
		}

		rpm, err := a.actuator.ReadRPM(ch.ID)
		if err != nil {
			a.logger.Warn("读取风扇 %s 转速失败: %v", ch.Name, err)
		} else {
			st.RPM = rpm
		}

		applied := st.Applied
		if applied < 0 {
			applied = 0
		}
		if a.publisher != nil {
			a.publisher.PublishFan(ch.ID, applied, st.RPM)
		}
	}
}

func (a *Arbiter) resolve(i int, ch Channel, in Inputs) (int, Source) {
	if a.overrides.Strap() {
		return a.strapDuty, SourceStrap
	}

	if in.ForceMax {
		return 100, SourceFailSafe
	}

	duty, source := a.normal(i, ch, in)
	if ch.ID == types.FanCPU {
		if enabled, temp, floor := a.overrides.BSOD(); enabled {
			return a.bsod(&a.states[i], in.CPUTemp, temp, floor, duty, source)
		}
	}
	return duty, source
}

// bsod 蓝屏保护: 越过阈值且已下发占空比低于下限时锁存, 锁存期间占空比不低于下限,
// 温度回落到关闭温度以下时强制 0 并解除锁存
func (a *Arbiter) bsod(st *FanState, cpu, threshold types.Celsius, floor, duty int, source Source) (int, Source) {
	if a.bsodCrossed {
		if cpu < a.fanOffTemp {
			a.logger.Info("CPU 温度 %d 回落到 %d 以下, 解除蓝屏保护", cpu, a.fanOffTemp)
			a.bsodCrossed = false
			return 0, SourceBSOD
		}
		return max(duty, floor), SourceBSOD
	}

	if cpu > threshold && st.Applied < floor {
		a.logger.Warn("CPU 温度 %d 超过蓝屏保护阈值 %d, 强制占空比 %d", cpu, threshold, floor)
		a.bsodCrossed = true
		return max(duty, floor), SourceBSOD
	}
	return duty, source
}

// normal 未被覆盖时的占空比: 主机持有控制权时取主机写入值, 否则走 EC 曲线
func (a *Arbiter) normal(i int, ch Channel, in Inputs) (int, Source) {
	st := &a.states[i]

	if a.overrides.HostOwnsFans() && !a.overrides.ECSelfControl() {
		if bios, speed := a.overrides.BIOSFanOverride(); bios && ch.ID == types.FanCPU {
			return speed, SourceHost
		}
		if duty, ok := a.overrides.HostDuty(ch.ID); ok {
			return duty, SourceHost
		}
		return st.Duty, SourceHost
	}

	if ch.FollowsCPU {
		return fancurve.DutyForTemperature(a.curve, in.CPUTemp, &a.memory[i]), SourceEC
	}
	return st.Duty, SourceEC
}

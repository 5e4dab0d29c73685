package arbiter

import (
	"sync/atomic"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// Overrides 控制权标志
//
// 每个字段只有一个写入方: 跳线由初始化写入一次, 其余由主机命令处理写入;
// 周期任务只读。因此使用独立的原子字段, 不加锁, 也不保证字段之间的一致快照。
type Overrides struct {
	strap         atomic.Bool
	acpiMode      atomic.Bool
	ecSelfControl atomic.Bool

	biosOverride  atomic.Bool
	biosFanSpeed  atomic.Int32
	bsodEnabled   atomic.Bool
	bsodTemp      atomic.Int32
	bsodFloorDuty atomic.Int32

	hostDuty [types.FanChannelCount]atomic.Int32
	hostSet  [types.FanChannelCount]atomic.Bool
}

// SetStrap 锁存硬件跳线覆盖(仅初始化时调用)
func (o *Overrides) SetStrap(enabled bool) { o.strap.Store(enabled) }

// Strap 硬件跳线覆盖是否生效
func (o *Overrides) Strap() bool { return o.strap.Load() }

// SetACPIMode 主机进入/退出 ACPI 模式
func (o *Overrides) SetACPIMode(enabled bool) {
	owned := o.HostOwnsFans()
	o.acpiMode.Store(enabled)
	o.resetHostDutyOnTakeover(owned)
}

// ACPIMode 主机是否处于 ACPI 模式
func (o *Overrides) ACPIMode() bool { return o.acpiMode.Load() }

// SetECSelfControl 设置 EC 自控优先
func (o *Overrides) SetECSelfControl(enabled bool) { o.ecSelfControl.Store(enabled) }

// ECSelfControl EC 自控是否优先
func (o *Overrides) ECSelfControl() bool { return o.ecSelfControl.Load() }

// SetBIOSFanOverride BIOS 接管风扇并指定 CPU 风扇占空比
func (o *Overrides) SetBIOSFanOverride(enabled bool, speed int) {
	owned := o.HostOwnsFans()
	o.biosFanSpeed.Store(int32(speed))
	o.biosOverride.Store(enabled)
	o.resetHostDutyOnTakeover(owned)
}

// 主机刚取得控制权时丢弃旧的写入, 通道保持当前占空比直到主机重新写入
func (o *Overrides) resetHostDutyOnTakeover(ownedBefore bool) {
	if ownedBefore || !o.HostOwnsFans() {
		return
	}
	for i := range o.hostSet {
		o.hostSet[i].Store(false)
	}
}

// BIOSFanOverride 返回 BIOS 接管状态与占空比
func (o *Overrides) BIOSFanOverride() (bool, int) {
	return o.biosOverride.Load(), int(o.biosFanSpeed.Load())
}

// SetBSOD 启用蓝屏保护并设置触发温度与最低占空比
func (o *Overrides) SetBSOD(temp types.Celsius, floorDuty int) {
	o.bsodTemp.Store(int32(temp))
	o.bsodFloorDuty.Store(int32(floorDuty))
	o.bsodEnabled.Store(true)
}

// BSOD 返回蓝屏保护设置
func (o *Overrides) BSOD() (enabled bool, temp types.Celsius, floorDuty int) {
	return o.bsodEnabled.Load(), types.Celsius(o.bsodTemp.Load()), int(o.bsodFloorDuty.Load())
}

// HostOwnsFans 主机是否持有风扇控制权
func (o *Overrides) HostOwnsFans() bool {
	return o.biosOverride.Load() || o.acpiMode.Load()
}

// SetHostDuty 记录主机为某通道写入的占空比
func (o *Overrides) SetHostDuty(ch types.FanChannel, duty int) bool {
	if ch < 0 || int(ch) >= len(o.hostDuty) {
		return false
	}
	o.hostDuty[ch].Store(int32(duty))
	o.hostSet[ch].Store(true)
	return true
}

// HostDuty 主机最近一次为某通道写入的占空比; 取得控制权后尚未写入时 ok 为 false
func (o *Overrides) HostDuty(ch types.FanChannel) (duty int, ok bool) {
	if ch < 0 || int(ch) >= len(o.hostDuty) {
		return 0, false
	}
	if !o.hostSet[ch].Load() {
		return 0, false
	}
	return int(o.hostDuty[ch].Load()), true
}

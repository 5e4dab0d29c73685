package thermal

import (
	"errors"
	"fmt"

	"github.com/TIANLI0/ec-thermalmgmt/internal/fancurve"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

var (
	ErrNotHostControlled = errors.New("thermal: fans not under host control")
	ErrUnsupported       = errors.New("thermal: not supported by board")
	ErrUnknownFan        = errors.New("thermal: unknown fan channel")
)

// 以下为主机命令入口, 可在任意 goroutine 调用

// SetACPIMode 主机进入/退出 ACPI 模式
func (e *Engine) SetACPIMode(enabled bool) {
	e.overrides.SetACPIMode(enabled)
	e.logger.Info("ACPI 模式: %v", enabled)
}

// SetECSelfControl 设置 EC 自控优先
func (e *Engine) SetECSelfControl(enabled bool) {
	e.overrides.SetECSelfControl(enabled)
	e.logger.Info("EC 自控: %v", enabled)
}

// ECSelfControl EC 自控是否优先
func (e *Engine) ECSelfControl() bool {
	return e.overrides.ECSelfControl()
}

// SetBIOSFanOverride BIOS 接管风扇, CPU 风扇使用 speed
func (e *Engine) SetBIOSFanOverride(enabled bool, speed int) {
	e.overrides.SetBIOSFanOverride(enabled, fancurve.ClampDuty(speed))
	e.logger.Info("BIOS 风扇接管: %v, 占空比 %d", enabled, speed)
}

// UpdateFanSpeed 主机为某通道写入占空比, 下一周期生效
func (e *Engine) UpdateFanSpeed(ch types.FanChannel, duty int) error {
	if !e.overrides.HostOwnsFans() {
		return ErrNotHostControlled
	}
	if !e.hasFan(ch) {
		return fmt.Errorf("%w: %d", ErrUnknownFan, ch)
	}
	if bios, speed := e.overrides.BIOSFanOverride(); bios && ch == types.FanCPU {
		duty = speed
	}
	e.overrides.SetHostDuty(ch, fancurve.ClampDuty(duty))
	e.logger.Debug("主机设置风扇 %d 占空比 %d", ch, duty)
	return nil
}

// SetBSODOverride 启用蓝屏保护
func (e *Engine) SetBSODOverride(temp types.Celsius, floorDuty int) error {
	if !e.cfg.BSOD.Supported {
		return ErrUnsupported
	}
	e.overrides.SetBSOD(temp, fancurve.ClampDuty(floorDuty))
	e.logger.Info("蓝屏保护: 温度 %d°C, 最低占空比 %d", temp, floorDuty)
	return nil
}

// UpdateThresholds 更新某位置的 DTT 阈值, 下一周期判定即使用新值
func (e *Engine) UpdateThresholds(loc types.SensorLocation, low, high, hyst types.DeciCelsius) error {
	if err := e.trips.Update(loc, low, high, hyst); err != nil {
		return err
	}
	e.logger.Info("更新 %s 阈值: low=%d high=%d hyst=%d", loc, low, high, hyst)
	return nil
}

// UpdateCritTemp 主机设置关机阈值, 0 恢复默认, 否则加上 EC 容差
func (e *Engine) UpdateCritTemp(temp types.Celsius) {
	crit := e.cfg.CritTemp
	if temp != 0 {
		crit = temp + e.cfg.CritTolerance
	}
	e.critTemp.Store(int32(crit))
	e.status.PublishCritTemp(crit)
	e.logger.Info("关机阈值: %d°C", crit)
}

// CritTemp 当前关机阈值
func (e *Engine) CritTemp() types.Celsius {
	return types.Celsius(e.critTemp.Load())
}

// HWPeripheralsStatus 硬件在位信息: 字节 0 为风扇位, 字节 1 为传感器位(按 ACPI 位置)
func (e *Engine) HWPeripheralsStatus() [2]byte {
	var sts [2]byte
	for _, ch := range e.fans {
		if ch >= 0 && ch < 8 {
			sts[0] |= 1 << ch
		}
	}
	for _, loc := range e.locations {
		if loc < 8 {
			sts[1] |= 1 << loc
		}
	}
	return sts
}

func (e *Engine) hasFan(ch types.FanChannel) bool {
	for _, f := range e.fans {
		if f == ch {
			return true
		}
	}
	return false
}

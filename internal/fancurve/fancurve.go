// Package fancurve 提供带方向滞回的风扇曲线查表算法
package fancurve

import (
	"errors"
	"fmt"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// ErrInvalidCurve 曲线不满足严格递增
var ErrInvalidCurve = errors.New("fancurve: invalid curve")

// Memory 曲线记忆: 上次选中的温度与占空比
//
// 升温时选中断点后 LastTemp 记为断点温度而不是输入温度,
// 降温时同理。这样温度在断点附近抖动时输出保持不变。
type Memory struct {
	LastTemp types.Celsius
	LastDuty int
}

// Validate 校验曲线: 非空, 温度与占空比均严格递增, 占空比 0-100
func Validate(curve []types.FanCurvePoint) error {
	if len(curve) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidCurve)
	}
	for i, point := range curve {
		if point.Duty < 0 || point.Duty > 100 {
			return fmt.Errorf("%w: point %d duty %d out of 0-100", ErrInvalidCurve, i, point.Duty)
		}
		if i == 0 {
			continue
		}
		prev := curve[i-1]
		if point.Temperature <= prev.Temperature {
			return fmt.Errorf("%w: temperature %d at point %d must be > %d", ErrInvalidCurve, point.Temperature, i, prev.Temperature)
		}
		if point.Duty <= prev.Duty {
			return fmt.Errorf("%w: duty %d at point %d must be > %d", ErrInvalidCurve, point.Duty, i, prev.Duty)
		}
	}
	return nil
}

// DutyForTemperature 根据温度计算占空比
//
// 低于首个断点返回首点占空比, 不低于末个断点返回末点占空比。
// 区间内: 温度高于记忆温度时正向扫描, 取不高于当前温度的最高断点;
// 否则反向扫描, 取不低于当前温度的最低断点(降速滞后)。
// 空曲线返回 100 且不修改记忆。
func DutyForTemperature(curve []types.FanCurvePoint, temp types.Celsius, mem *Memory) int {
	if len(curve) == 0 {
		return 100
	}
	if mem == nil {
		mem = &Memory{}
	}

	first := curve[0]
	last := curve[len(curve)-1]

	if temp < first.Temperature {
		mem.LastTemp = temp
		mem.LastDuty = first.Duty
		return mem.LastDuty
	}
	if temp >= last.Temperature {
		mem.LastTemp = temp
		mem.LastDuty = last.Duty
		return mem.LastDuty
	}

	if temp > mem.LastTemp {
		for _, point := range curve {
			if temp >= point.Temperature {
				mem.LastTemp = point.Temperature
				mem.LastDuty = point.Duty
			}
		}
	} else {
		for i := len(curve) - 1; i >= 0; i-- {
			if temp <= curve[i].Temperature {
				mem.LastTemp = curve[i].Temperature
				mem.LastDuty = curve[i].Duty
			}
		}
	}

	return mem.LastDuty
}

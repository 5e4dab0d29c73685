// Package trip 实现带滞回的 DTT 温度阈值检测
package trip

import (
	"errors"
	"fmt"
	"sync"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

var (
	ErrUnknownLocation = errors.New("trip: unknown sensor location")
	ErrInvalidRecord   = errors.New("trip: invalid threshold record")
)

// Evaluate 对单个位置执行一次阈值判定, 返回新的状态位以及状态是否变化
//
// 低温: 未触发时 value < low 触发; 已触发时 value >= low+hyst 才释放。
// 高温: 未触发时 value > high 触发; 已触发时 value <= high-hyst 才释放。
func Evaluate(value types.DeciCelsius, rec types.ThresholdRecord) (uint8, bool) {
	status := rec.Status

	limit := rec.LowTemp
	if status&types.StatusLowTrip != 0 {
		limit = rec.LowTemp + rec.Hysteresis
	}
	if value < limit {
		status |= types.StatusLowTrip
	} else {
		status &^= types.StatusLowTrip
	}

	limit = rec.HighTemp
	if status&types.StatusHighTrip != 0 {
		limit = rec.HighTemp - rec.Hysteresis
	}
	if value > limit {
		status |= types.StatusHighTrip
	} else {
		status &^= types.StatusHighTrip
	}

	return status, status != rec.Status
}

// ValidateRecord 校验 low < high 且滞回小于两者间距
func ValidateRecord(rec types.ThresholdRecord) error {
	if rec.LowTemp >= rec.HighTemp {
		return fmt.Errorf("%w: low %d must be below high %d", ErrInvalidRecord, rec.LowTemp, rec.HighTemp)
	}
	if rec.Hysteresis < 0 || rec.Hysteresis >= rec.HighTemp-rec.LowTemp {
		return fmt.Errorf("%w: hysteresis %d must be within [0, %d)", ErrInvalidRecord, rec.Hysteresis, rec.HighTemp-rec.LowTemp)
	}
	return nil
}

type entry struct {
	location types.SensorLocation
	record   types.ThresholdRecord
	seeded   bool
}

// Table 每个监控位置的阈值记录
//
// 记录只由主机阈值更新命令和周期任务的 EvaluateAll 修改, 两者通过 mu 串行。
type Table struct {
	mu      sync.Mutex
	entries []entry
}

// NewTable 按位置列表创建阈值表, 每条记录使用平台默认值
func NewTable(locations []types.SensorLocation, defaults types.ThresholdRecord) *Table {
	t := &Table{entries: make([]entry, len(locations))}
	defaults.Status = types.StatusInit
	for i, loc := range locations {
		t.entries[i] = entry{location: loc, record: defaults}
	}
	return t
}

// Update 主机更新某位置的阈值, 下一个周期立即生效
func (t *Table) Update(loc types.SensorLocation, low, high, hyst types.DeciCelsius) error {
	candidate := types.ThresholdRecord{LowTemp: low, HighTemp: high, Hysteresis: hyst}
	if err := ValidateRecord(candidate); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	found := false
	for i := range t.entries {
		if t.entries[i].location != loc {
			continue
		}
		rec := &t.entries[i].record
		rec.LowTemp = low
		rec.HighTemp = high
		rec.Hysteresis = hyst
		found = true
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownLocation, loc)
	}
	return nil
}

// Record 返回某位置的阈值记录副本
func (t *Table) Record(loc types.SensorLocation) (types.ThresholdRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.location == loc {
			return e.record, true
		}
	}
	return types.ThresholdRecord{}, false
}

// Locations 返回所有监控位置
func (t *Table) Locations() []types.SensorLocation {
	t.mu.Lock()
	defer t.mu.Unlock()

	locs := make([]types.SensorLocation, len(t.entries))
	for i, e := range t.entries {
		locs[i] = e.location
	}
	return locs
}

// EvaluateAll 对所有位置执行判定, 返回状态变化的位置聚合位
//
// 首次判定只记录状态不产生告警, 即使初始温度已越限。
// readings 中缺失的位置跳过。
func (t *Table) EvaluateAll(readings map[types.SensorLocation]types.DeciCelsius) uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var alert uint16
	for i := range t.entries {
		e := &t.entries[i]
		value, ok := readings[e.location]
		if !ok {
			continue
		}

		status, changed := Evaluate(value, e.record)
		e.record.Status = status
		if !e.seeded {
			e.seeded = true
			continue
		}
		if changed {
			alert |= 1 << e.location
		}
	}
	return alert
}

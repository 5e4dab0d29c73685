// Package sensor 提供温度源: ACPI 位置温度与 CPU/GPU 关键探针
package sensor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

var (
	ErrNoSensor      = errors.New("sensor: location not configured")
	ErrProbeNotFound = errors.New("sensor: probe not found")
)

// Source 温度源
type Source interface {
	// ReadTemperature 读取某个 ACPI 位置的当前温度
	ReadTemperature(loc types.SensorLocation) (types.DeciCelsius, error)
	// ReadCriticalProbe 读取 CPU/GPU 关键探针, 启动期间可能短暂失败
	ReadCriticalProbe(ctx context.Context, probe types.Probe) (types.Celsius, error)
	// GPUActive 独显是否在位且上电
	GPUActive() bool
}

type locationReader func() (types.DeciCelsius, error)

// Board 按配置表组合各后端的板级温度源
type Board struct {
	readers map[types.SensorLocation]locationReader
	probe   *CPUProbe
	gpu     func() bool
}

// NewBoard 根据传感器配置表构建温度源, 无法识别的条目返回错误
//
// zones 或 hwmon 为 nil 时, 使用对应后端的条目会报错。
func NewBoard(sensors []types.SensorConfig, zones *ThermalZones, hwmon *Hwmon, probe *CPUProbe) (*Board, error) {
	b := &Board{
		readers: make(map[types.SensorLocation]locationReader, len(sensors)),
		probe:   probe,
	}

	for _, s := range sensors {
		loc, ok := types.ParseSensorLocation(s.Location)
		if !ok {
			return nil, fmt.Errorf("未知传感器位置 %q", s.Location)
		}
		source := s.Source
		switch s.Backend {
		case "thermal_zone":
			if zones == nil {
				return nil, fmt.Errorf("传感器 %s 需要 thermal_zone 后端", s.Location)
			}
			b.readers[loc] = func() (types.DeciCelsius, error) { return zones.Read(source) }
		case "hwmon":
			if hwmon == nil {
				return nil, fmt.Errorf("传感器 %s 需要 hwmon 后端", s.Location)
			}
			b.readers[loc] = func() (types.DeciCelsius, error) { return hwmon.Read(source) }
		default:
			return nil, fmt.Errorf("传感器 %s 后端 %q 不支持", s.Location, s.Backend)
		}
	}

	return b, nil
}

// SetGPUDetector 设置独显在位检测
func (b *Board) SetGPUDetector(fn func() bool) {
	b.gpu = fn
}

// Locations 已配置的位置, 按编号升序
func (b *Board) Locations() []types.SensorLocation {
	locs := make([]types.SensorLocation, 0, len(b.readers))
	for loc := range b.readers {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	return locs
}

// ReadTemperature 实现 Source
func (b *Board) ReadTemperature(loc types.SensorLocation) (types.DeciCelsius, error) {
	read, ok := b.readers[loc]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoSensor, loc)
	}
	return read()
}

// ReadCriticalProbe 实现 Source
func (b *Board) ReadCriticalProbe(ctx context.Context, probe types.Probe) (types.Celsius, error) {
	if b.probe == nil {
		return 0, fmt.Errorf("%w: %s", ErrProbeNotFound, probe)
	}
	return b.probe.Read(ctx, probe)
}

// GPUActive 实现 Source
func (b *Board) GPUActive() bool {
	return b.gpu != nil && b.gpu()
}

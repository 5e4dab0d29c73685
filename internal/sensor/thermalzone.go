package sensor

import (
	"fmt"

	"github.com/prometheus/procfs/sysfs"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// ThermalZones 通过 /sys/class/thermal 读取 ACPI 热区温度
type ThermalZones struct {
	fs sysfs.FS
}

// NewThermalZones 打开 sysfs 挂载点
func NewThermalZones(sysPath string) (*ThermalZones, error) {
	fs, err := sysfs.NewFS(sysPath)
	if err != nil {
		return nil, fmt.Errorf("打开 sysfs 失败: %w", err)
	}
	return &ThermalZones{fs: fs}, nil
}

// Read 读取第一个类型匹配的热区温度
func (z *ThermalZones) Read(zoneType string) (types.DeciCelsius, error) {
	zones, err := z.fs.ClassThermalZoneStats()
	if err != nil {
		return 0, fmt.Errorf("读取热区失败: %w", err)
	}
	for _, stats := range zones {
		if stats.Type == zoneType {
			// 毫度 -> 0.1 度
			return types.DeciCelsius(stats.Temp / 100), nil
		}
	}
	return 0, fmt.Errorf("%w: thermal zone %q", ErrNoSensor, zoneType)
}

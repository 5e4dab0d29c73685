package sensor

import (
	"context"
	"fmt"
	"math"

	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// CPUProbe 通过 gopsutil 读取 CPU/GPU 探针温度
type CPUProbe struct {
	keys         map[types.Probe]string
	temperatures func(ctx context.Context) ([]sensors.TemperatureStat, error)
}

// NewCPUProbe 按 "cpu"/"gpu" -> SensorKey 映射创建探针
func NewCPUProbe(keys map[string]string) *CPUProbe {
	p := &CPUProbe{
		keys:         make(map[types.Probe]string, len(keys)),
		temperatures: sensors.TemperaturesWithContext,
	}
	for name, key := range keys {
		switch name {
		case "cpu":
			p.keys[types.ProbeCPU] = key
		case "gpu":
			p.keys[types.ProbeGPU] = key
		}
	}
	return p
}

// Read 读取探针温度, 四舍五入到整数摄氏度
//
// gopsutil 在部分传感器失败时仍返回可用数据和 Warnings 错误, 只要找到目标键就视为成功。
func (p *CPUProbe) Read(ctx context.Context, probe types.Probe) (types.Celsius, error) {
	key, ok := p.keys[probe]
	if !ok || key == "" {
		return 0, fmt.Errorf("%w: %s 未配置", ErrProbeNotFound, probe)
	}

	stats, err := p.temperatures(ctx)
	for _, s := range stats {
		if s.SensorKey == key {
			return types.Celsius(math.Round(s.Temperature)), nil
		}
	}
	if err != nil {
		return 0, fmt.Errorf("读取 %s 探针失败: %w", probe, err)
	}
	return 0, fmt.Errorf("%w: %s", ErrProbeNotFound, key)
}

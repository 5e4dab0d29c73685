package thermal

import (
	"context"

	"github.com/TIANLI0/ec-thermalmgmt/internal/arbiter"
	"github.com/TIANLI0/ec-thermalmgmt/internal/notify"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// RunCycle 执行一个完整周期
//
// 顺序固定: 风扇仲裁 -> 位置温度与阈值告警 -> CPU/GPU 温度 -> 状态镜像。
// CS 期间可按配置跳过温度轮询, 但风扇供电门控每周期都执行。
func (e *Engine) RunCycle(ctx context.Context) {
	e.Init()
	e.cycles.Add(1)

	e.manageFans()

	if e.cfg.SkipPollingInLowPower && e.power.IsConnectedStandby() {
		e.flushStatus()
		return
	}

	e.manageSensors()
	e.manageCPUThermal(ctx)
	e.flushStatus()
}

func (e *Engine) manageFans() {
	e.arbiter.Run(arbiter.Inputs{
		Power:            e.power.CurrentPowerState(),
		ConnectedStandby: e.power.IsConnectedStandby(),
		CPUTemp:          e.cpuTemp,
		ForceMax:         e.forceMax,
	})
}

func (e *Engine) manageSensors() {
	if len(e.locations) == 0 {
		return
	}

	for _, loc := range e.locations {
		value, err := e.source.ReadTemperature(loc)
		if err != nil {
			last, ok := e.readings[loc]
			if !ok {
				last = e.cfg.FailSafeTemp.Deci()
			}
			e.logger.Warn("读取 %s 温度失败, 沿用 %d: %v", loc, last, err)
			value = last
		}
		e.readings[loc] = value
	}

	alert := e.trips.EvaluateAll(e.readings)

	for _, loc := range e.locations {
		rec, _ := e.trips.Record(loc)
		e.status.PublishLocation(loc, e.readings[loc], rec.Status)
	}

	if alert != 0 {
		e.logger.Info("温度阈值状态变化: %#04x", alert)
		e.status.PublishAlert(alert)
		e.enqueue(notify.Event{Kind: notify.KindTrip, Bits: alert})
	}
}

func (e *Engine) manageCPUThermal(ctx context.Context) {
	if e.settle.Remaining() > 0 || e.power.CurrentPowerState() != types.PowerS0 {
		return
	}

	temp, err := e.source.ReadCriticalProbe(ctx, types.ProbeCPU)
	if err != nil {
		temp = e.substituteCPUTemp(err)
	} else {
		if e.forceMax {
			e.logger.Info("CPU 温度读取恢复: %d°C, 解除强制全速", temp)
		}
		e.probeFailures = 0
		e.forceMax = false
		e.lastGoodCPU = temp
		e.haveGoodCPU = true
	}

	e.cpuTemp = temp
	e.status.PublishCPUTemp(temp)
	e.logger.Debug("CPU 温度: %d°C", temp)

	crit := e.CritTemp()
	if temp >= crit {
		if !e.shutdownSent {
			e.logger.Error("CPU 温度 %d°C 达到关机阈值 %d°C", temp, crit)
			e.enqueue(notify.Event{Kind: notify.KindCritical, Temp: temp})
			if e.shutdown != nil {
				e.shutdown(temp)
			}
			e.shutdownSent = true
		}
		return
	}
	e.shutdownSent = false

	if e.source.GPUActive() {
		gpu, err := e.source.ReadCriticalProbe(ctx, types.ProbeGPU)
		if err != nil {
			e.logger.Warn("读取 GPU 温度失败: %v", err)
			gpu = e.cfg.FailCriticalTemp
		}
		e.status.PublishGPUTemp(gpu)
	}

	change := temp - e.prevNotifyTemp
	if change < 0 {
		change = -change
	}
	if change > e.cfg.AlertDelta {
		e.enqueue(notify.Event{Kind: notify.KindThermal, Temp: temp})
		e.prevNotifyTemp = temp
	}
}

// substituteCPUTemp 连续失败未达上限时沿用最后有效值, 达到上限后按最坏情况处理
func (e *Engine) substituteCPUTemp(err error) types.Celsius {
	e.probeFailures++

	if e.probeFailures >= e.cfg.MaxProbeFailures {
		if !e.forceMax {
			e.logger.Error("CPU 温度连续 %d 次读取失败, 上报 %d°C 并强制风扇全速: %v",
				e.probeFailures, e.cfg.FailCriticalTemp, err)
		}
		e.forceMax = true
		return e.cfg.FailCriticalTemp
	}

	substitute := e.cfg.FailSafeTemp
	if e.haveGoodCPU {
		substitute = e.lastGoodCPU
	}
	e.logger.Warn("读取 CPU 温度失败(%d/%d), 沿用 %d°C: %v",
		e.probeFailures, e.cfg.MaxProbeFailures, substitute, err)
	return substitute
}

func (e *Engine) enqueue(ev notify.Event) {
	if e.alerts == nil {
		return
	}
	if !e.alerts.Enqueue(ev) {
		e.logger.Warn("告警队列已满, 丢弃 %s 告警", ev.Kind)
	}
}

func (e *Engine) flushStatus() {
	if e.sink == nil {
		return
	}
	if err := e.sink.Write(e.status); err != nil {
		e.logger.Warn("写入状态文件失败: %v", err)
	}
}

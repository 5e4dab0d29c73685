package config

import (
	"github.com/TIANLI0/ec-thermalmgmt/internal/fancurve"
	"github.com/TIANLI0/ec-thermalmgmt/internal/trip"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// NormalizeConfig 归一化配置, 越界字段回退为默认值
func NormalizeConfig(cfg types.AppConfig) (types.AppConfig, bool) {
	defaults := types.GetDefaultConfig()
	changed := false

	if cfg.PollIntervalMs < 50 || cfg.PollIntervalMs > 5000 {
		cfg.PollIntervalMs = defaults.PollIntervalMs
		changed = true
	}
	if cfg.LowPowerIntervalSec < 1 || cfg.LowPowerIntervalSec > 60 {
		cfg.LowPowerIntervalSec = defaults.LowPowerIntervalSec
		changed = true
	}
	if cfg.SettleDelayMs < 0 || cfg.SettleDelayMs > 10000 {
		cfg.SettleDelayMs = defaults.SettleDelayMs
		changed = true
	}
	if cfg.FailSafeTemp < 0 || cfg.FailSafeTemp > 60 {
		cfg.FailSafeTemp = defaults.FailSafeTemp
		changed = true
	}
	if cfg.FailCriticalTemp < 40 || cfg.FailCriticalTemp > 110 {
		cfg.FailCriticalTemp = defaults.FailCriticalTemp
		changed = true
	}
	if cfg.CritTemp < 60 || cfg.CritTemp > 127 {
		cfg.CritTemp = defaults.CritTemp
		changed = true
	}
	if cfg.CritTolerance < 0 || cfg.CritTolerance > 15 {
		cfg.CritTolerance = defaults.CritTolerance
		changed = true
	}
	if cfg.AlertDelta < 1 || cfg.AlertDelta > 20 {
		cfg.AlertDelta = defaults.AlertDelta
		changed = true
	}
	if cfg.MaxProbeFailures < 1 || cfg.MaxProbeFailures > 20 {
		cfg.MaxProbeFailures = defaults.MaxProbeFailures
		changed = true
	}
	if cfg.FanOverrideValue < 0 || cfg.FanOverrideValue > 100 {
		cfg.FanOverrideValue = defaults.FanOverrideValue
		changed = true
	}

	if fancurve.Validate(cfg.FanCurve) != nil {
		cfg.FanCurve = defaults.FanCurve
		changed = true
	}

	if trip.ValidateRecord(cfg.Threshold) != nil {
		cfg.Threshold = defaults.Threshold
		changed = true
	}
	if cfg.Threshold.Status != types.StatusInit {
		cfg.Threshold.Status = types.StatusInit
		changed = true
	}

	if cfg.BSOD.TempOverride <= 0 || cfg.BSOD.TempOverride > 127 {
		cfg.BSOD.TempOverride = defaults.BSOD.TempOverride
		changed = true
	}
	if cfg.BSOD.FanOverride < 0 || cfg.BSOD.FanOverride > 100 {
		cfg.BSOD.FanOverride = defaults.BSOD.FanOverride
		changed = true
	}
	if cfg.BSOD.FanOffTemp <= 0 || cfg.BSOD.FanOffTemp >= cfg.BSOD.TempOverride {
		cfg.BSOD.FanOffTemp = min(defaults.BSOD.FanOffTemp, cfg.BSOD.TempOverride-1)
		changed = true
	}

	if sensors, updated := normalizeSensors(cfg.Sensors); updated {
		cfg.Sensors = sensors
		changed = true
	}
	if fans, updated := normalizeFans(cfg.Fans); updated {
		cfg.Fans = fans
		changed = true
	}

	if cfg.ProbeKeys == nil {
		cfg.ProbeKeys = defaults.ProbeKeys
		changed = true
	}
	if cfg.StatusPath == "" {
		cfg.StatusPath = defaults.StatusPath
		changed = true
	}

	if cfg.Log.MaxSizeMB < 1 || cfg.Log.MaxSizeMB > 500 {
		cfg.Log.MaxSizeMB = defaults.Log.MaxSizeMB
		changed = true
	}
	if cfg.Log.MaxBackups < 0 || cfg.Log.MaxBackups > 100 {
		cfg.Log.MaxBackups = defaults.Log.MaxBackups
		changed = true
	}
	if cfg.Log.MaxAgeDays < 1 || cfg.Log.MaxAgeDays > 365 {
		cfg.Log.MaxAgeDays = defaults.Log.MaxAgeDays
		changed = true
	}

	return cfg, changed
}

// normalizeSensors 丢弃位置未知、后端未知或位置重复的条目
func normalizeSensors(sensors []types.SensorConfig) ([]types.SensorConfig, bool) {
	out := make([]types.SensorConfig, 0, len(sensors))
	seen := make(map[types.SensorLocation]bool, len(sensors))
	for _, s := range sensors {
		loc, ok := types.ParseSensorLocation(s.Location)
		if !ok || seen[loc] || s.Source == "" {
			continue
		}
		if s.Backend != "thermal_zone" && s.Backend != "hwmon" {
			continue
		}
		seen[loc] = true
		out = append(out, s)
	}
	return out, len(out) != len(sensors)
}

// normalizeFans 丢弃通道越界或重复的条目, 并修正启动占空比
func normalizeFans(fans []types.FanConfig) ([]types.FanConfig, bool) {
	changed := false
	out := make([]types.FanConfig, 0, len(fans))
	seen := make(map[int]bool, len(fans))
	for _, f := range fans {
		if f.Channel < 0 || f.Channel >= types.FanChannelCount || seen[f.Channel] {
			changed = true
			continue
		}
		switch f.Backend {
		case "hwmon", "ec", "hid":
		default:
			changed = true
			continue
		}
		if clamped := fancurve.ClampDuty(f.StartupDuty); clamped != f.StartupDuty {
			f.StartupDuty = clamped
			changed = true
		}
		seen[f.Channel] = true
		out = append(out, f)
	}
	return out, changed
}

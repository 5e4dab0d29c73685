package config

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, changed, err := Load(fs, "/etc/ecthermald/config.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if changed {
		t.Error("defaults reported as changed")
	}
	if cfg.PollIntervalMs != 250 || cfg.CritTemp != 105 {
		t.Errorf("unexpected defaults: poll=%d crit=%d", cfg.PollIntervalMs, cfg.CritTemp)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := types.GetDefaultConfig()
	cfg.ECFanControl = true
	cfg.FanCurve = []types.FanCurvePoint{{Temperature: 30, Duty: 20}, {Temperature: 70, Duty: 80}}

	if err := Save(fs, "/etc/ecthermald/config.json", cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, changed, err := Load(fs, "/etc/ecthermald/config.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if changed {
		t.Error("valid config reported as changed")
	}
	if !got.ECFanControl || len(got.FanCurve) != 2 || got.FanCurve[1].Duty != 80 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/cfg.json", []byte("{"), 0o644)
	if _, _, err := Load(fs, "/cfg.json"); err == nil {
		t.Error("expected parse error")
	}
}

func TestNormalizeConfig(t *testing.T) {
	defaults := types.GetDefaultConfig()

	tests := []struct {
		name   string
		mutate func(*types.AppConfig)
		check  func(*testing.T, types.AppConfig)
	}{
		{
			name:   "poll interval out of range",
			mutate: func(c *types.AppConfig) { c.PollIntervalMs = 1 },
			check: func(t *testing.T, c types.AppConfig) {
				if c.PollIntervalMs != defaults.PollIntervalMs {
					t.Errorf("PollIntervalMs = %d", c.PollIntervalMs)
				}
			},
		},
		{
			name: "non-monotonic curve",
			mutate: func(c *types.AppConfig) {
				c.FanCurve = []types.FanCurvePoint{{Temperature: 50, Duty: 40}, {Temperature: 40, Duty: 60}}
			},
			check: func(t *testing.T, c types.AppConfig) {
				if len(c.FanCurve) != len(defaults.FanCurve) {
					t.Errorf("curve not reset: %v", c.FanCurve)
				}
			},
		},
		{
			name:   "inverted threshold",
			mutate: func(c *types.AppConfig) { c.Threshold.LowTemp, c.Threshold.HighTemp = 1000, 950 },
			check: func(t *testing.T, c types.AppConfig) {
				if c.Threshold != defaults.Threshold {
					t.Errorf("threshold = %+v", c.Threshold)
				}
			},
		},
		{
			name:   "bsod off temp above trigger",
			mutate: func(c *types.AppConfig) { c.BSOD.FanOffTemp = 95 },
			check: func(t *testing.T, c types.AppConfig) {
				if c.BSOD.FanOffTemp != 55 {
					t.Errorf("FanOffTemp = %d", c.BSOD.FanOffTemp)
				}
			},
		},
		{
			name: "duplicate and unknown sensors",
			mutate: func(c *types.AppConfig) {
				c.Sensors = []types.SensorConfig{
					{Location: "vr", Backend: "thermal_zone", Source: "TVR"},
					{Location: "vr", Backend: "hwmon", Source: "/x"},
					{Location: "attic", Backend: "hwmon", Source: "/y"},
				}
			},
			check: func(t *testing.T, c types.AppConfig) {
				if len(c.Sensors) != 1 || c.Sensors[0].Source != "TVR" {
					t.Errorf("sensors = %+v", c.Sensors)
				}
			},
		},
		{
			name: "fan channel out of range",
			mutate: func(c *types.AppConfig) {
				c.Fans = append(c.Fans, types.FanConfig{Name: "x", Channel: 7, Backend: "hwmon"})
			},
			check: func(t *testing.T, c types.AppConfig) {
				if len(c.Fans) != len(defaults.Fans) {
					t.Errorf("fans = %+v", c.Fans)
				}
			},
		},
		{
			name: "startup duty clamped",
			mutate: func(c *types.AppConfig) {
				c.Fans[0].StartupDuty = 150
			},
			check: func(t *testing.T, c types.AppConfig) {
				if c.Fans[0].StartupDuty != 100 {
					t.Errorf("StartupDuty = %d", c.Fans[0].StartupDuty)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.GetDefaultConfig()
			tt.mutate(&cfg)
			got, changed := NormalizeConfig(cfg)
			if !changed {
				t.Error("expected changed = true")
			}
			tt.check(t, got)
		})
	}

	t.Run("defaults unchanged", func(t *testing.T) {
		if _, changed := NormalizeConfig(types.GetDefaultConfig()); changed {
			t.Error("defaults reported as changed")
		}
	})
}

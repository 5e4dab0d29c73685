// Command ecthermald 运行 EC 温控服务
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/afero"

	"github.com/TIANLI0/ec-thermalmgmt/internal/arbiter"
	"github.com/TIANLI0/ec-thermalmgmt/internal/config"
	"github.com/TIANLI0/ec-thermalmgmt/internal/device"
	"github.com/TIANLI0/ec-thermalmgmt/internal/hoststatus"
	"github.com/TIANLI0/ec-thermalmgmt/internal/logger"
	"github.com/TIANLI0/ec-thermalmgmt/internal/notify"
	"github.com/TIANLI0/ec-thermalmgmt/internal/power"
	"github.com/TIANLI0/ec-thermalmgmt/internal/sensor"
	"github.com/TIANLI0/ec-thermalmgmt/internal/service"
	"github.com/TIANLI0/ec-thermalmgmt/internal/statusview"
	"github.com/TIANLI0/ec-thermalmgmt/internal/thermal"
	"github.com/TIANLI0/ec-thermalmgmt/internal/tray"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "配置文件路径")
	debug := flag.Bool("debug", false, "输出调试日志")
	sysPath := flag.String("sysfs", "/sys", "sysfs 挂载点")
	flag.Parse()

	fs := afero.NewOsFs()

	if args := flag.Args(); len(args) > 0 {
		os.Exit(runCommand(fs, args[0], *configPath))
	}

	if err := runDaemon(fs, *configPath, *sysPath, *debug); err != nil {
		fmt.Fprintln(os.Stderr, "ecthermald:", err)
		os.Exit(1)
	}
}

func runCommand(fs afero.Fs, command, configPath string) int {
	cfg, _, err := config.Load(fs, configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if command == "status" {
		snap, err := hoststatus.ReadFile(fs, cfg.StatusPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取状态文件 %s 失败: %v\n", cfg.StatusPath, err)
			return 1
		}
		fmt.Println(statusview.Render(snap, viewOptions(cfg)))
		return 0
	}

	if !service.IsCommand(command) {
		fmt.Fprintf(os.Stderr, "未知命令 %q, 可用: status install remove start stop service-status\n", command)
		return 2
	}

	log, err := logger.New(types.LogConfig{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Close()

	mgr, err := service.NewManager(log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	out, err := mgr.Execute(command, []string{"-config", configPath})
	fmt.Println(out)
	if err != nil {
		return 1
	}
	return 0
}

func viewOptions(cfg types.AppConfig) statusview.Options {
	opts := statusview.Options{FanNames: make(map[types.FanChannel]string, len(cfg.Fans))}
	for _, f := range cfg.Fans {
		opts.FanNames[types.FanChannel(f.Channel)] = f.Name
	}
	for _, s := range cfg.Sensors {
		if loc, ok := types.ParseSensorLocation(s.Location); ok {
			opts.Locations = append(opts.Locations, loc)
		}
	}
	return opts
}

func runDaemon(fs afero.Fs, configPath, sysPath string, debug bool) error {
	cfg, changed, err := config.Load(fs, configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Log.Debug = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer log.Close()
	log.CleanOldLogs()

	if changed {
		log.Warn("配置文件包含越界字段, 已按默认值修正")
		if err := config.Save(fs, configPath, cfg); err != nil {
			log.Warn("保存修正后的配置失败: %v", err)
		}
	}

	zones, err := sensor.NewThermalZones(sysPath)
	if err != nil {
		log.Warn("thermal_zone 不可用: %v", err)
		zones = nil
	}
	board, err := sensor.NewBoard(cfg.Sensors, zones, sensor.NewHwmon(fs), sensor.NewCPUProbe(cfg.ProbeKeys))
	if err != nil {
		return fmt.Errorf("初始化传感器失败: %w", err)
	}

	if cfg.GPUPresent != nil {
		line, err := device.OpenInputLine(*cfg.GPUPresent)
		if err != nil {
			log.Warn("独显在位检测不可用: %v", err)
		} else {
			defer line.Close()
			board.SetGPUDetector(line.High)
		}
	}

	bank, err := device.Open(cfg, fs, log)
	if err != nil {
		return fmt.Errorf("初始化风扇失败: %w", err)
	}
	defer bank.Close()

	overrides := &arbiter.Overrides{}
	if cfg.Strap != nil {
		strapped, err := device.ReadStrap(*cfg.Strap)
		if err != nil {
			log.Warn("读取温控跳线失败: %v", err)
		} else if strapped {
			log.Warn("温控跳线有效, 风扇固定为 %d%%", cfg.FanOverrideValue)
			overrides.SetStrap(true)
		}
	}

	var sinks []notify.Sink
	if cfg.DesktopNotify {
		sinks = append(sinks, notify.NewDesktopSink("ecthermald", notify.KindTrip, notify.KindCritical))
	}
	alerts := notify.NewQueue(32, log, sinks...)

	tracker := power.NewTracker(types.PowerS0)
	engine := thermal.New(cfg, thermal.Deps{
		Source:    board,
		Actuator:  bank,
		Power:     tracker,
		Overrides: overrides,
		Status:    hoststatus.NewBlock(),
		Sink:      hoststatus.NewFileSink(fs, cfg.StatusPath),
		Alerts:    alerts,
		Shutdown:  shutdownHandler(cfg, log),
		Locations: board.Locations(),
		Logger:    log,
	})
	tracker.OnCSExit(engine.Wake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group

	g.Add(func() error {
		return engine.Run(ctx)
	}, func(error) {
		cancel()
	})

	{
		alertCtx, alertCancel := context.WithCancel(ctx)
		g.Add(func() error {
			return alerts.Run(alertCtx)
		}, func(error) {
			alertCancel()
		})
	}

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	// SIGUSR1/SIGUSR2 由系统睡眠钩子发送, 表示进入/退出 CS
	{
		csCtx, csCancel := context.WithCancel(ctx)
		g.Add(func() error {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGUSR1, syscall.SIGUSR2)
			defer signal.Stop(sig)
			for {
				select {
				case s := <-sig:
					enter := s == syscall.SIGUSR1
					log.Info("连接待机: %v", enter)
					tracker.SetConnectedStandby(enter)
				case <-csCtx.Done():
					return nil
				}
			}
		}, func(error) {
			csCancel()
		})
	}

	if cfg.Tray && !service.LaunchedByInit() {
		trayMgr := tray.NewManager(log, nil)
		trayCtx, trayCancel := context.WithCancel(ctx)
		trayMgr.SetCallbacks(
			trayCancel,
			func() bool {
				enabled := !engine.ECSelfControl()
				engine.SetECSelfControl(enabled)
				return enabled
			},
			func() tray.Status { return trayStatus(engine, cfg) },
		)
		g.Add(func() error {
			trayMgr.Init()
			<-trayCtx.Done()
			return nil
		}, func(error) {
			trayCancel()
			trayMgr.Quit()
		})
	}

	log.Info("ecthermald 启动: 轮询 %v, 低功耗轮询 %v", cfg.PollInterval(), cfg.LowPowerInterval())
	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info("收到信号 %v, 退出", sigErr.Signal)
		return nil
	}
	return err
}

func shutdownHandler(cfg types.AppConfig, log types.Logger) thermal.ShutdownHandler {
	return func(temp types.Celsius) {
		if !cfg.ShutdownOnCritical {
			log.Error("CPU 温度 %d°C 达到关机阈值, 未启用自动关机", temp)
			return
		}
		log.Error("CPU 温度 %d°C 达到关机阈值, 关闭系统", temp)
		if err := exec.Command("systemctl", "poweroff").Run(); err != nil {
			log.Error("关机失败: %v", err)
		}
	}
}

func trayStatus(engine *thermal.Engine, cfg types.AppConfig) tray.Status {
	snap := engine.Snapshot()
	status := tray.Status{
		State:         engine.State().String(),
		CPUTemp:       snap.CPUTemp,
		GPUTemp:       snap.GPUTemp,
		CritTemp:      snap.CritTemp,
		ECSelfControl: engine.ECSelfControl(),
	}
	for _, f := range cfg.Fans {
		if f.Channel < 0 || f.Channel >= len(snap.Fans) {
			continue
		}
		fan := snap.Fans[f.Channel]
		status.Fans = append(status.Fans, tray.FanLine{Name: f.Name, Duty: fan.Duty, RPM: fan.RPM})
	}
	return status
}

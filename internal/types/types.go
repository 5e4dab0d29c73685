// Package types 定义了 EC 温控引擎中使用的所有共享类型
package types

import "time"

// Celsius 整数摄氏度
type Celsius int

// DeciCelsius 0.1 摄氏度
type DeciCelsius int

// Degrees 转换为整数摄氏度(向零取整)
func (d DeciCelsius) Degrees() Celsius {
	return Celsius(int(d) / 10)
}

// Deci 转换为 0.1 摄氏度
func (c Celsius) Deci() DeciCelsius {
	return DeciCelsius(int(c) * 10)
}

// SensorLocation ACPI 温度传感器位置编号(与 BIOS 约定的位序一致)
type SensorLocation uint8

const (
	LocationPCH SensorLocation = iota
	LocationSkin
	LocationAmbient
	LocationVR
	LocationDDR
	LocationCPU
	LocationGPU
	LocationCount = 16
)

var locationNames = map[SensorLocation]string{
	LocationPCH:     "pch",
	LocationSkin:    "skin",
	LocationAmbient: "ambient",
	LocationVR:      "vr",
	LocationDDR:     "ddr",
	LocationCPU:     "cpu",
	LocationGPU:     "gpu",
}

func (l SensorLocation) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseSensorLocation 解析配置中的位置名称
func ParseSensorLocation(name string) (SensorLocation, bool) {
	for loc, n := range locationNames {
		if n == name {
			return loc, true
		}
	}
	return 0, false
}

// Probe 关键温度探针
type Probe uint8

const (
	ProbeCPU Probe = iota
	ProbeGPU
)

func (p Probe) String() string {
	if p == ProbeGPU {
		return "gpu"
	}
	return "cpu"
}

// PowerState 系统电源状态
type PowerState uint8

const (
	PowerS0 PowerState = iota
	PowerS3
	PowerS4
	PowerS5
)

func (s PowerState) String() string {
	switch s {
	case PowerS0:
		return "S0"
	case PowerS3:
		return "S3"
	case PowerS4:
		return "S4"
	case PowerS5:
		return "S5"
	default:
		return "unknown"
	}
}

// SensorReading 单次传感器读数
type SensorReading struct {
	Location SensorLocation `json:"location"` // ACPI 位置
	Value    DeciCelsius    `json:"value"`    // 当前值(0.1°C)
	Channel  int            `json:"channel"`  // 物理通道
}

// 阈值状态位
const (
	StatusLowTrip  uint8 = 1 << 0
	StatusHighTrip uint8 = 1 << 1
	StatusInit     uint8 = 1 << 7
)

// ThresholdRecord DTT 阈值记录
type ThresholdRecord struct {
	LowTemp    DeciCelsius `json:"lowTemp"`    // 低温触发点
	HighTemp   DeciCelsius `json:"highTemp"`   // 高温触发点
	Hysteresis DeciCelsius `json:"hysteresis"` // 滞回温差
	Status     uint8       `json:"status"`     // 状态位
}

// FanCurvePoint 风扇曲线点
type FanCurvePoint struct {
	Temperature Celsius `json:"temperature"` // 温度 °C
	Duty        int     `json:"duty"`        // 占空比 %
}

// FanChannel 风扇通道编号(与 BIOS 约定的位序一致)
type FanChannel int

const (
	FanCPU FanChannel = iota
	FanRear
	FanGraphics
	FanPCH
	FanChannelCount = 4
)

// SensorConfig 温度传感器配置
type SensorConfig struct {
	Location string `json:"location"` // ACPI 位置名称
	Backend  string `json:"backend"`  // thermal_zone/hwmon
	Source   string `json:"source"`   // 热区类型或 hwmon 输入文件路径
	Channel  int    `json:"channel"`  // 物理通道
}

// FanConfig 风扇配置
type FanConfig struct {
	Name        string `json:"name"`        // 风扇名称
	Channel     int    `json:"channel"`     // 风扇通道
	Backend     string `json:"backend"`     // hwmon/ec/hid
	PWMPath     string `json:"pwmPath"`     // hwmon pwm 文件
	RPMPath     string `json:"rpmPath"`     // hwmon 转速文件
	ECPath      string `json:"ecPath"`      // EC io 文件
	DutyReg     int    `json:"dutyReg"`     // EC 占空比寄存器
	RPMReg      int    `json:"rpmReg"`      // EC 转速寄存器(16位)
	HIDVendor   uint16 `json:"hidVendor"`   // HID VID
	HIDProduct  uint16 `json:"hidProduct"`  // HID PID
	StartupDuty int    `json:"startupDuty"` // 启动占空比
	FollowsCPU  bool   `json:"followsCpu"`  // 自控模式下跟随 CPU 曲线
}

// GPIOLineConfig GPIO 线配置
type GPIOLineConfig struct {
	Name string `json:"name"` // 线名称(优先)
	Chip string `json:"chip"` // gpiochip
	Line int    `json:"line"` // 偏移
}

// BSODConfig BIOS 蓝屏保护默认阈值
type BSODConfig struct {
	Supported    bool    `json:"supported"`    // 板级是否支持
	TempOverride Celsius `json:"tempOverride"` // 触发温度
	FanOverride  int     `json:"fanOverride"`  // 最低占空比
	FanOffTemp   Celsius `json:"fanOffTemp"`   // 关闭温度
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `json:"dir"`        // 日志目录
	Debug      bool   `json:"debug"`      // 调试模式
	MaxSizeMB  int    `json:"maxSizeMb"`  // 单文件大小
	MaxBackups int    `json:"maxBackups"` // 保留文件数
	MaxAgeDays int    `json:"maxAgeDays"` // 保留天数
}

// AppConfig 应用配置
type AppConfig struct {
	PollIntervalMs        int               `json:"pollIntervalMs"`        // 正常轮询周期(毫秒)
	LowPowerIntervalSec   int               `json:"lowPowerIntervalSec"`   // 低功耗轮询周期(秒)
	SettleDelayMs         int               `json:"settleDelayMs"`         // 传感器稳定延迟(毫秒)
	FailSafeTemp          Celsius           `json:"failSafeTemp"`          // 稳定期上报温度
	FailCriticalTemp      Celsius           `json:"failCriticalTemp"`      // 读取失败上报温度
	CritTemp              Celsius           `json:"critTemp"`              // 关机阈值
	CritTolerance         Celsius           `json:"critTolerance"`         // 主机设置关机阈值时的容差
	AlertDelta            Celsius           `json:"alertDelta"`            // CPU 温度变化通知阈值
	MaxProbeFailures      int               `json:"maxProbeFailures"`      // 连续失败上限
	FanOverrideValue      int               `json:"fanOverrideValue"`      // 硬件跳线覆盖占空比
	ForceFanOverride      bool              `json:"forceFanOverride"`      // 软件强制覆盖
	ECFanControl          bool              `json:"ecFanControl"`          // EC 自控优先
	SkipPollingInLowPower bool              `json:"skipPollingInLowPower"` // 低功耗时不访问 CPU
	FanCurve              []FanCurvePoint   `json:"fanCurve"`              // 风扇曲线
	Threshold             ThresholdRecord   `json:"threshold"`             // 默认 DTT 阈值
	BSOD                  BSODConfig        `json:"bsod"`                  // 蓝屏保护
	Sensors               []SensorConfig    `json:"sensors"`               // 传感器表
	Fans                  []FanConfig       `json:"fans"`                  // 风扇表
	Strap                 *GPIOLineConfig   `json:"strap"`                 // 温控跳线
	FanPower              *GPIOLineConfig   `json:"fanPower"`              // 风扇供电
	GPUPresent            *GPIOLineConfig   `json:"gpuPresent"`            // 独显在位
	ProbeKeys             map[string]string `json:"probeKeys"`             // 探针 -> gopsutil SensorKey
	StatusPath            string            `json:"statusPath"`            // 状态块镜像文件
	DesktopNotify         bool              `json:"desktopNotify"`         // 桌面通知
	ShutdownOnCritical    bool              `json:"shutdownOnCritical"`    // 达到关机阈值时关闭系统
	Tray                  bool              `json:"tray"`                  // 托盘
	Log                   LogConfig         `json:"log"`                   // 日志
}

// PollInterval 正常轮询周期
func (c AppConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LowPowerInterval 低功耗轮询周期
func (c AppConfig) LowPowerInterval() time.Duration {
	return time.Duration(c.LowPowerIntervalSec) * time.Second
}

// SettleDelay 传感器稳定延迟
func (c AppConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// GetDefaultFanCurve 获取默认风扇曲线(热模型标定)
func GetDefaultFanCurve() []FanCurvePoint {
	return []FanCurvePoint{
		{Temperature: 15, Duty: 10},
		{Temperature: 45, Duty: 23},
		{Temperature: 63, Duty: 36},
		{Temperature: 73, Duty: 49},
		{Temperature: 80, Duty: 61},
		{Temperature: 85, Duty: 74},
		{Temperature: 88, Duty: 87},
		{Temperature: 90, Duty: 100},
	}
}

// GetDefaultThreshold 获取默认 DTT 阈值: 低 95°C, 高 100°C, 滞回 2°C
func GetDefaultThreshold() ThresholdRecord {
	return ThresholdRecord{
		LowTemp:    950,
		HighTemp:   1000,
		Hysteresis: 20,
		Status:     StatusInit,
	}
}

// GetDefaultBSODConfig 获取默认蓝屏保护阈值
func GetDefaultBSODConfig() BSODConfig {
	return BSODConfig{
		Supported:    true,
		TempOverride: 90,
		FanOverride:  100,
		FanOffTemp:   55,
	}
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() AppConfig {
	return AppConfig{
		PollIntervalMs:        250,
		LowPowerIntervalSec:   8,
		SettleDelayMs:         1000,
		FailSafeTemp:          28,
		FailCriticalTemp:      72,
		CritTemp:              105,
		CritTolerance:         5,
		AlertDelta:            3,
		MaxProbeFailures:      3,
		FanOverrideValue:      100,
		ForceFanOverride:      false,
		ECFanControl:          false,
		SkipPollingInLowPower: true,
		FanCurve:              GetDefaultFanCurve(),
		Threshold:             GetDefaultThreshold(),
		BSOD:                  GetDefaultBSODConfig(),
		Sensors: []SensorConfig{
			{Location: "ambient", Backend: "thermal_zone", Source: "acpitz", Channel: 4},
			{Location: "vr", Backend: "thermal_zone", Source: "TVR", Channel: 5},
			{Location: "ddr", Backend: "thermal_zone", Source: "TMEM", Channel: 6},
		},
		Fans: []FanConfig{
			{Name: "cpu", Channel: int(FanCPU), Backend: "hwmon", PWMPath: "/sys/class/hwmon/hwmon2/pwm1", RPMPath: "/sys/class/hwmon/hwmon2/fan1_input", StartupDuty: 100, FollowsCPU: true},
			{Name: "rear", Channel: int(FanRear), Backend: "hwmon", PWMPath: "/sys/class/hwmon/hwmon2/pwm2", RPMPath: "/sys/class/hwmon/hwmon2/fan2_input", StartupDuty: 100, FollowsCPU: true},
		},
		ProbeKeys: map[string]string{
			"cpu": "coretemp_package_id_0",
			"gpu": "amdgpu_edge",
		},
		StatusPath:         "/run/ecthermald/status.bin",
		DesktopNotify:      false,
		ShutdownOnCritical: false,
		Tray:               false,
		Log: LogConfig{
			Dir:        "/var/log/ecthermald",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// Logger 日志记录器接口
type Logger interface {
	Info(format string, v ...any)
	Error(format string, v ...any)
	Warn(format string, v ...any)
	Debug(format string, v ...any)
	Close()
	CleanOldLogs()
	SetDebugMode(enabled bool)
	GetLogDir() string
}

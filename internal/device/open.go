package device

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// Open 按风扇配置表打开全部驱动
//
// 任一风扇打开失败时关闭已打开的驱动并返回错误。
func Open(cfg types.AppConfig, fs afero.Fs, logger types.Logger) (*Bank, error) {
	var power Switch
	if cfg.FanPower != nil {
		line, err := OpenPowerLine(*cfg.FanPower)
		if err != nil {
			return nil, fmt.Errorf("打开风扇供电线失败: %w", err)
		}
		power = line
	}

	bank := NewBank(power, logger)
	ports := make(map[string]*ECPort)

	for _, fc := range cfg.Fans {
		fan, err := openFan(fc, fs, ports, bank)
		if err != nil {
			bank.Close()
			return nil, fmt.Errorf("打开风扇 %s 失败: %w", fc.Name, err)
		}
		if err := bank.Attach(types.FanChannel(fc.Channel), fan); err != nil {
			_ = fan.Close()
			bank.Close()
			return nil, err
		}
		logger.Info("风扇 %s 已就绪: 通道 %d, 后端 %s", fc.Name, fc.Channel, fc.Backend)
	}

	return bank, nil
}

func openFan(fc types.FanConfig, fs afero.Fs, ports map[string]*ECPort, bank *Bank) (Fan, error) {
	switch fc.Backend {
	case "hwmon":
		return NewHwmonFan(fs, fc.PWMPath, fc.RPMPath), nil
	case "ec":
		path := fc.ECPath
		if path == "" {
			path = DefaultECPath
		}
		port, ok := ports[path]
		if !ok {
			var err error
			port, err = OpenECPort(path)
			if err != nil {
				return nil, err
			}
			ports[path] = port
			bank.Own(port)
		}
		return NewECFan(port, fc.DutyReg, fc.RPMReg), nil
	case "hid":
		return OpenHIDFan(fc.HIDVendor, fc.HIDProduct, fc.Channel)
	default:
		return nil, fmt.Errorf("未知风扇后端 %q", fc.Backend)
	}
}

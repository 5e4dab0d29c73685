package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// HwmonFan 通过 hwmon pwmN/fanN_input 控制风扇
type HwmonFan struct {
	fs      afero.Fs
	pwmPath string
	rpmPath string
	manual  bool
}

// NewHwmonFan 创建 hwmon 风扇驱动
func NewHwmonFan(fs afero.Fs, pwmPath, rpmPath string) *HwmonFan {
	return &HwmonFan{fs: fs, pwmPath: pwmPath, rpmPath: rpmPath}
}

// SetDuty 写入 pwm(0-255), 首次写入前切换到手动模式
func (f *HwmonFan) SetDuty(percent int) error {
	if !f.manual {
		if err := afero.WriteFile(f.fs, f.pwmPath+"_enable", []byte("1"), 0o644); err != nil {
			return fmt.Errorf("切换 %s 手动模式失败: %w", f.pwmPath, err)
		}
		f.manual = true
	}
	value := strconv.Itoa(int(percentToByte(percent)))
	if err := afero.WriteFile(f.fs, f.pwmPath, []byte(value), 0o644); err != nil {
		f.manual = false
		return fmt.Errorf("写入 %s 失败: %w", f.pwmPath, err)
	}
	return nil
}

// ReadRPM 读取 fanN_input
func (f *HwmonFan) ReadRPM() (int, error) {
	if f.rpmPath == "" {
		return 0, nil
	}
	data, err := afero.ReadFile(f.fs, f.rpmPath)
	if err != nil {
		return 0, fmt.Errorf("读取 %s 失败: %w", f.rpmPath, err)
	}
	rpm, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", f.rpmPath, err)
	}
	return rpm, nil
}

// Close 交还自动控制
func (f *HwmonFan) Close() error {
	if !f.manual {
		return nil
	}
	f.manual = false
	return afero.WriteFile(f.fs, f.pwmPath+"_enable", []byte("2"), 0o644)
}

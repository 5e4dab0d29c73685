package sensor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// Hwmon 读取 hwmon tempN_input 文件(毫度)
type Hwmon struct {
	fs afero.Fs
}

// NewHwmon 创建 hwmon 读取器
func NewHwmon(fs afero.Fs) *Hwmon {
	return &Hwmon{fs: fs}
}

// Read 读取温度输入文件
func (h *Hwmon) Read(path string) (types.DeciCelsius, error) {
	data, err := afero.ReadFile(h.fs, path)
	if err != nil {
		return 0, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return types.DeciCelsius(milli / 100), nil
}

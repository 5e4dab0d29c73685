// Package config 负责配置文件的读写与归一化
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "/etc/ecthermald/config.json"

// Load 读取配置文件, 文件不存在时返回默认配置
//
// 返回的配置已经过 NormalizeConfig, changed 表示是否有字段被修正。
func Load(afs afero.Fs, path string) (types.AppConfig, bool, error) {
	data, err := afero.ReadFile(afs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return types.GetDefaultConfig(), false, nil
	}
	if err != nil {
		return types.AppConfig{}, false, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := types.GetDefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return types.AppConfig{}, false, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	cfg, changed := NormalizeConfig(cfg)
	return cfg, changed, nil
}

// Save 写入配置文件
func Save(afs afero.Fs, path string, cfg types.AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := afs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := afero.WriteFile(afs, path, data, 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

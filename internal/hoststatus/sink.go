package hoststatus

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileSink 将状态块镜像到文件, 供进程外的主机通信组件读取
type FileSink struct {
	fs   afero.Fs
	path string
}

// NewFileSink 创建文件镜像
func NewFileSink(fs afero.Fs, path string) *FileSink {
	return &FileSink{fs: fs, path: path}
}

// Write 先写临时文件再重命名, 读者不会看到半写的文件
func (s *FileSink) Write(b *Block) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("创建状态目录失败: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, b.Encode(), 0o644); err != nil {
		return fmt.Errorf("写入状态文件失败: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("替换状态文件失败: %w", err)
	}
	return nil
}

// ReadFile 读取并解码状态文件
func ReadFile(fs afero.Fs, path string) (Snapshot, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Snapshot{}, err
	}
	return Decode(data)
}

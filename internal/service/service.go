// Package service 提供 systemd/SysV 服务安装与管理
package service

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/takama/daemon"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

const (
	Name        = "ecthermald"
	Description = "EC thermal and fan control daemon"
)

// ErrUnknownCommand 未知的服务管理命令
var ErrUnknownCommand = errors.New("service: unknown command")

// Commands 支持的服务管理命令
var Commands = []string{"install", "remove", "start", "stop", "service-status"}

type controller interface {
	Install(args ...string) (string, error)
	Remove() (string, error)
	Start() (string, error)
	Stop() (string, error)
	Status() (string, error)
}

// Manager 服务管理器
type Manager struct {
	logger types.Logger
	ctl    controller
}

// NewManager 创建系统级服务管理器
func NewManager(logger types.Logger) (*Manager, error) {
	d, err := daemon.New(Name, Description, daemon.SystemDaemon)
	if err != nil {
		return nil, fmt.Errorf("创建服务管理器失败: %w", err)
	}
	return &Manager{logger: logger, ctl: d}, nil
}

// IsCommand 是否为服务管理命令
func IsCommand(arg string) bool {
	for _, c := range Commands {
		if c == arg {
			return true
		}
	}
	return false
}

// Execute 执行服务管理命令, install 的 args 作为服务启动参数
func (m *Manager) Execute(command string, args []string) (string, error) {
	var (
		out string
		err error
	)

	switch command {
	case "install":
		out, err = m.ctl.Install(args...)
	case "remove":
		out, err = m.ctl.Remove()
	case "start":
		out, err = m.ctl.Start()
	case "stop":
		out, err = m.ctl.Stop()
	case "service-status":
		out, err = m.ctl.Status()
	default:
		return "Usage: " + Name + " " + strings.Join(Commands, " | "), ErrUnknownCommand
	}

	if err != nil {
		m.logger.Error("服务命令 %s 失败: %v", command, err)
		return out, err
	}
	m.logger.Info("服务命令 %s: %s", command, out)
	return out, nil
}

// LaunchedByInit 检测是否由 systemd 启动
func LaunchedByInit() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("NOTIFY_SOCKET") != ""
}

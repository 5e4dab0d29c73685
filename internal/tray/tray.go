// Package tray 提供系统托盘状态显示
package tray

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/systray"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

//go:embed icon.png
var defaultIcon []byte

const maxFanItems = types.FanChannelCount

// Manager 系统托盘管理器
type Manager struct {
	logger      types.Logger
	initialized int32 // atomic: 0=未初始化, 1=已初始化
	readyState  int32 // atomic: 0=未就绪, 1=就绪
	mutex       sync.Mutex
	done        chan struct{} // 关闭此通道以通知所有 goroutine 退出
	uiQueue     chan func()
	iconData    []byte
	menuItems   *MenuItems
	interval    time.Duration

	onQuit         func()
	onToggleECCtrl func() bool
	getStatus      func() Status
	toggleInFlight int32
	quitInFlight   int32
}

// MenuItems 托盘菜单项
type MenuItems struct {
	State          *systray.MenuItem
	CPUTemperature *systray.MenuItem
	GPUTemperature *systray.MenuItem
	Fans           [maxFanItems]*systray.MenuItem
	ECSelfControl  *systray.MenuItem
	Quit           *systray.MenuItem
}

// FanLine 单个风扇的显示数据
type FanLine struct {
	Name string
	Duty int
	RPM  int
}

// Status 托盘显示的状态
type Status struct {
	State         string
	CPUTemp       types.Celsius
	GPUTemp       types.Celsius
	CritTemp      types.Celsius
	Fans          []FanLine
	ECSelfControl bool
}

// NewManager 创建托盘管理器, iconData 为空时使用内置图标
func NewManager(logger types.Logger, iconData []byte) *Manager {
	if len(iconData) == 0 {
		iconData = defaultIcon
	}
	return &Manager{
		logger:   logger,
		done:     make(chan struct{}),
		uiQueue:  make(chan func(), 64),
		iconData: iconData,
		interval: 2 * time.Second,
	}
}

// SetCallbacks 设置回调函数
func (m *Manager) SetCallbacks(onQuit func(), onToggleECCtrl func() bool, getStatus func() Status) {
	m.onQuit = onQuit
	m.onToggleECCtrl = onToggleECCtrl
	m.getStatus = getStatus
}

// Init 在独立的系统线程上启动托盘
func (m *Manager) Init() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !atomic.CompareAndSwapInt32(&m.initialized, 0, 1) {
		m.logger.Debug("托盘已经初始化，跳过重复初始化")
		return
	}

	m.logger.Info("正在初始化系统托盘")

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("托盘运行中发生panic: %v", r)
				atomic.StoreInt32(&m.initialized, 0)
				atomic.StoreInt32(&m.readyState, 0)
			}
		}()

		systray.Run(m.onTrayReady, m.onTrayExit)
	}()
}

func (m *Manager) onTrayReady() {
	systray.SetIcon(m.iconData)
	systray.SetTitle("ecthermald")
	systray.SetTooltip("EC 温控 - 运行中")

	m.menuItems = m.createMenu()
	m.startUIWorker()
	atomic.StoreInt32(&m.readyState, 1)
	m.logger.Info("系统托盘初始化完成")

	go m.handleMenuEvents()
	go m.updateMenuStatus()
}

func (m *Manager) createMenu() *MenuItems {
	items := &MenuItems{}

	items.State = systray.AddMenuItem("状态", "温控任务状态")
	items.State.Disable()
	items.CPUTemperature = systray.AddMenuItem("CPU温度", "当前CPU温度")
	items.CPUTemperature.Disable()
	items.GPUTemperature = systray.AddMenuItem("GPU温度", "当前GPU温度")
	items.GPUTemperature.Disable()

	systray.AddSeparator()
	for i := range items.Fans {
		items.Fans[i] = systray.AddMenuItem("", "风扇占空比与转速")
		items.Fans[i].Disable()
		items.Fans[i].Hide()
	}

	systray.AddSeparator()
	ecCtrl := false
	if m.getStatus != nil {
		ecCtrl = m.getStatus().ECSelfControl
	}
	items.ECSelfControl = systray.AddMenuItemCheckbox("EC 自控优先", "EC 风扇曲线优先于主机设置", ecCtrl)

	systray.AddSeparator()
	items.Quit = systray.AddMenuItem("退出", "停止温控服务")
	return items
}

func (m *Manager) handleMenuEvents() {
	for {
		select {
		case <-m.menuItems.ECSelfControl.ClickedCh:
			if m.onToggleECCtrl == nil {
				continue
			}
			m.runTrayActionAsync("toggle-ec-control", &m.toggleInFlight, func() {
				enabled := m.onToggleECCtrl()
				m.enqueueUI("toggle-ec-control-ui", func() {
					if enabled {
						m.menuItems.ECSelfControl.Check()
					} else {
						m.menuItems.ECSelfControl.Uncheck()
					}
				})
			})
		case <-m.menuItems.Quit.ClickedCh:
			m.logger.Info("托盘菜单: 用户请求退出")
			if m.onQuit != nil {
				m.runTrayActionAsync("quit", &m.quitInFlight, m.onQuit)
			}
			return
		case <-m.done:
			return
		}
	}
}

// runTrayActionAsync 异步执行托盘动作，避免阻塞托盘消息处理
func (m *Manager) runTrayActionAsync(action string, inFlight *int32, fn func()) {
	if !atomic.CompareAndSwapInt32(inFlight, 0, 1) {
		m.logger.Debug("托盘动作[%s]仍在执行，忽略重复触发", action)
		return
	}

	go func() {
		defer func() {
			atomic.StoreInt32(inFlight, 0)
			if r := recover(); r != nil {
				m.logger.Error("托盘动作[%s]发生panic: %v", action, r)
			}
		}()
		fn()
	}()
}

func (m *Manager) updateMenuStatus() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !m.IsReady() || m.getStatus == nil {
				continue
			}
			status := m.getStatus()
			m.enqueueUI("update-menu-status", func() { m.applyStatus(status) })
		case <-m.done:
			return
		}
	}
}

func (m *Manager) applyStatus(status Status) {
	items := m.menuItems
	if items == nil {
		return
	}

	items.State.SetTitle("状态: " + status.State)
	items.CPUTemperature.SetTitle(formatTemp("CPU温度", status.CPUTemp))
	items.GPUTemperature.SetTitle(formatTemp("GPU温度", status.GPUTemp))

	for i, item := range items.Fans {
		if i < len(status.Fans) {
			item.SetTitle(formatFan(status.Fans[i]))
			item.Show()
		} else {
			item.Hide()
		}
	}

	if status.ECSelfControl {
		items.ECSelfControl.Check()
	} else {
		items.ECSelfControl.Uncheck()
	}

	systray.SetTooltip(Tooltip(status))
}

func formatTemp(label string, temp types.Celsius) string {
	if temp <= 0 {
		return label + ": 无数据"
	}
	return fmt.Sprintf("%s: %d°C", label, temp)
}

func formatFan(f FanLine) string {
	if f.RPM > 0 {
		return fmt.Sprintf("风扇 %s: %d%% / %d RPM", f.Name, f.Duty, f.RPM)
	}
	return fmt.Sprintf("风扇 %s: %d%%", f.Name, f.Duty)
}

// Tooltip 托盘提示文本
func Tooltip(status Status) string {
	var b strings.Builder
	b.WriteString("EC 温控 - ")
	b.WriteString(status.State)
	if status.CPUTemp > 0 {
		fmt.Fprintf(&b, "\nCPU: %d°C (关机 %d°C)", status.CPUTemp, status.CritTemp)
	}
	for _, f := range status.Fans {
		b.WriteString("\n")
		b.WriteString(formatFan(f))
	}
	return b.String()
}

func (m *Manager) onTrayExit() {
	m.logger.Debug("托盘退出回调被触发")
	atomic.StoreInt32(&m.readyState, 0)
	atomic.StoreInt32(&m.initialized, 0)
}

func (m *Manager) startUIWorker() {
	go func() {
		for {
			select {
			case fn := <-m.uiQueue:
				fn()
			case <-m.done:
				return
			}
		}
	}()
}

func (m *Manager) enqueueUI(action string, fn func()) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	wrapped := func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("托盘UI动作[%s]发生panic: %v", action, r)
			}
		}()
		fn()
	}

	select {
	case m.uiQueue <- wrapped:
		return true
	default:
		m.logger.Warn("托盘UI队列繁忙，丢弃动作: %s", action)
		return false
	}
}

// IsReady 托盘是否就绪
func (m *Manager) IsReady() bool {
	return atomic.LoadInt32(&m.readyState) == 1
}

// Quit 退出托盘
func (m *Manager) Quit() {
	atomic.StoreInt32(&m.readyState, 0)

	m.mutex.Lock()
	select {
	case <-m.done:
	default:
		close(m.done)
	}
	m.mutex.Unlock()

	if atomic.LoadInt32(&m.initialized) == 1 {
		systray.Quit()
	}
}

// Package statusview 将主机状态块渲染为终端文本
package statusview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TIANLI0/ec-thermalmgmt/internal/hoststatus"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

var (
	colorTitle  = lipgloss.Color("51")
	colorBorder = lipgloss.Color("62")
	colorLabel  = lipgloss.Color("252")
	colorDim    = lipgloss.Color("240")
	colorWarn   = lipgloss.Color("220")
	colorCrit   = lipgloss.Color("196")
)

// Options 渲染选项
type Options struct {
	Locations []types.SensorLocation // 为空时显示所有已初始化的位置
	FanNames  map[types.FanChannel]string
}

// Render 渲染状态块
func Render(snap hoststatus.Snapshot, opts Options) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorTitle).Render("ecthermald")

	sections := []string{
		title,
		renderCPU(snap),
		renderLocations(snap, opts.Locations),
		renderFans(snap, opts.FanNames),
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func tempStyle(temp, crit types.Celsius) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(colorLabel)
	switch {
	case crit > 0 && temp >= crit:
		return style.Foreground(colorCrit).Bold(true)
	case crit > 0 && temp >= crit-15:
		return style.Foreground(colorWarn)
	default:
		return style
	}
}

func renderCPU(snap hoststatus.Snapshot) string {
	label := lipgloss.NewStyle().Foreground(colorDim).Width(10)
	lines := []string{
		label.Render("CPU") + tempStyle(snap.CPUTemp, snap.CritTemp).Render(fmt.Sprintf("%d°C", snap.CPUTemp)),
	}
	if snap.GPUTemp != 0 {
		lines = append(lines, label.Render("GPU")+tempStyle(snap.GPUTemp, snap.CritTemp).Render(fmt.Sprintf("%d°C", snap.GPUTemp)))
	}
	lines = append(lines, label.Render("关机阈值")+fmt.Sprintf("%d°C", snap.CritTemp))
	if snap.Alert != 0 {
		lines = append(lines, label.Render("告警")+lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf("%#04x", snap.Alert)))
	}
	return strings.Join(lines, "\n")
}

// StatusText 阈值状态位的文本
func StatusText(status uint8) string {
	var parts []string
	if status&types.StatusInit == 0 {
		return "未初始化"
	}
	if status&types.StatusLowTrip != 0 {
		parts = append(parts, "低温")
	}
	if status&types.StatusHighTrip != 0 {
		parts = append(parts, "高温")
	}
	if len(parts) == 0 {
		return "正常"
	}
	return strings.Join(parts, "+")
}

func renderLocations(snap hoststatus.Snapshot, locs []types.SensorLocation) string {
	if len(locs) == 0 {
		for i, l := range snap.Locations {
			if l.Status&types.StatusInit != 0 {
				locs = append(locs, types.SensorLocation(i))
			}
		}
	}
	if len(locs) == 0 {
		return lipgloss.NewStyle().Foreground(colorDim).Render("无温度传感器")
	}

	name := lipgloss.NewStyle().Foreground(colorDim).Width(10)
	value := lipgloss.NewStyle().Foreground(colorLabel).Width(9).Align(lipgloss.Right)
	rows := make([]string, 0, len(locs))
	for _, loc := range locs {
		if int(loc) >= len(snap.Locations) {
			continue
		}
		l := snap.Locations[loc]
		text := StatusText(l.Status)
		state := lipgloss.NewStyle().Foreground(colorLabel)
		if l.Status&(types.StatusLowTrip|types.StatusHighTrip) != 0 {
			state = state.Foreground(colorWarn)
		}
		rows = append(rows, name.Render(loc.String())+
			value.Render(fmt.Sprintf("%d.%d°C", l.Value/10, abs(int(l.Value%10))))+
			"  "+state.Render(text))
	}
	return strings.Join(rows, "\n")
}

func renderFans(snap hoststatus.Snapshot, names map[types.FanChannel]string) string {
	name := lipgloss.NewStyle().Foreground(colorDim).Width(10)
	var rows []string
	for i, f := range snap.Fans {
		ch := types.FanChannel(i)
		n, ok := names[ch]
		if !ok {
			if f.Duty == 0 && f.RPM == 0 {
				continue
			}
			n = fmt.Sprintf("fan%d", i)
		}
		rows = append(rows, name.Render(n)+fmt.Sprintf("%3d%%  %5d RPM", f.Duty, f.RPM))
	}
	if len(rows) == 0 {
		return lipgloss.NewStyle().Foreground(colorDim).Render("无风扇")
	}
	return strings.Join(rows, "\n")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

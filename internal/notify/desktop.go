package notify

import (
	"github.com/gen2brain/beeep"
)

// DesktopSink 通过桌面通知提示主机用户
type DesktopSink struct {
	title string
	kinds map[Kind]bool
}

// NewDesktopSink 创建桌面通知接收方, kinds 为空时接收全部类型
func NewDesktopSink(title string, kinds ...Kind) *DesktopSink {
	s := &DesktopSink{title: title}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
	return s
}

// Notify 发送桌面通知, 关机告警使用带提示音的 Alert
func (s *DesktopSink) Notify(ev Event) error {
	if s.kinds != nil && !s.kinds[ev.Kind] {
		return nil
	}
	if ev.Kind == KindCritical {
		return beeep.Alert(s.title, ev.Message(), "")
	}
	return beeep.Notify(s.title, ev.Message(), "")
}

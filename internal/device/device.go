// Package device 实现风扇执行器: PWM 占空比、转速读取和风扇供电
package device

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

var (
	ErrNotConnected   = errors.New("device: not connected")
	ErrInvalidChannel = errors.New("device: invalid fan channel")
)

// Fan 单个风扇通道驱动
type Fan interface {
	SetDuty(percent int) error
	ReadRPM() (int, error)
	Close() error
}

// Switch 风扇供电开关
type Switch interface {
	Set(on bool) error
	Close() error
}

// Bank 按通道分发的执行器集合, 实现 arbiter.Actuator
type Bank struct {
	fans    map[types.FanChannel]Fan
	power   Switch
	closers []io.Closer
	logger  types.Logger
}

// NewBank 创建执行器集合, power 为 nil 时供电控制为空操作
func NewBank(power Switch, logger types.Logger) *Bank {
	return &Bank{
		fans:   make(map[types.FanChannel]Fan),
		power:  power,
		logger: logger,
	}
}

// Attach 绑定通道驱动
func (b *Bank) Attach(ch types.FanChannel, fan Fan) error {
	if ch < 0 || ch >= types.FanChannelCount {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	if _, exists := b.fans[ch]; exists {
		return fmt.Errorf("%w: %d 已绑定", ErrInvalidChannel, ch)
	}
	b.fans[ch] = fan
	return nil
}

// Own 登记随 Bank 一起关闭的共享资源
func (b *Bank) Own(c io.Closer) {
	b.closers = append(b.closers, c)
}

// Channels 已绑定的通道, 升序
func (b *Bank) Channels() []types.FanChannel {
	chs := make([]types.FanChannel, 0, len(b.fans))
	for ch := range b.fans {
		chs = append(chs, ch)
	}
	sort.Slice(chs, func(i, j int) bool { return chs[i] < chs[j] })
	return chs
}

// SetDutyCycle 设置通道占空比
func (b *Bank) SetDutyCycle(ch types.FanChannel, percent int) error {
	fan, ok := b.fans[ch]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	return fan.SetDuty(percent)
}

// ReadRPM 读取通道转速
func (b *Bank) ReadRPM(ch types.FanChannel) (int, error) {
	fan, ok := b.fans[ch]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	return fan.ReadRPM()
}

// SetPower 设置风扇供电
func (b *Bank) SetPower(on bool) error {
	if b.power == nil {
		return nil
	}
	return b.power.Set(on)
}

// Close 关闭所有驱动
func (b *Bank) Close() {
	for ch, fan := range b.fans {
		if err := fan.Close(); err != nil {
			b.logger.Warn("关闭风扇 %d 驱动失败: %v", ch, err)
		}
	}
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			b.logger.Warn("关闭共享驱动资源失败: %v", err)
		}
	}
	if b.power != nil {
		if err := b.power.Close(); err != nil {
			b.logger.Warn("释放风扇供电线失败: %v", err)
		}
	}
}

func percentToByte(percent int) byte {
	percent = max(0, min(100, percent))
	return byte((percent*255 + 50) / 100)
}

package device

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

const gpioConsumer = "ecthermald"

func requestLine(cfg types.GPIOLineConfig, options ...gpiocdev.LineReqOption) (*gpiocdev.Chip, *gpiocdev.Line, error) {
	chipName := cfg.Chip
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, nil, fmt.Errorf("打开 %s 失败: %w", chipName, err)
	}

	offset := cfg.Line
	if cfg.Name != "" {
		offset, err = chip.FindLine(cfg.Name)
		if err != nil {
			_ = chip.Close()
			return nil, nil, fmt.Errorf("查找 GPIO 线 %q 失败: %w", cfg.Name, err)
		}
	}

	options = append(options, gpiocdev.WithConsumer(gpioConsumer))
	line, err := chip.RequestLine(offset, options...)
	if err != nil {
		_ = chip.Close()
		return nil, nil, fmt.Errorf("申请 GPIO 线 %s:%d 失败: %w", chipName, offset, err)
	}
	return chip, line, nil
}

// PowerLine 风扇供电使能输出线
type PowerLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	on   bool
	set  bool
}

// OpenPowerLine 申请供电线, 初始为关闭
func OpenPowerLine(cfg types.GPIOLineConfig) (*PowerLine, error) {
	chip, line, err := requestLine(cfg, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &PowerLine{chip: chip, line: line, set: true}, nil
}

// Set 设置供电, 电平未变化时不访问硬件
func (p *PowerLine) Set(on bool) error {
	if p.line == nil {
		return ErrNotConnected
	}
	if p.set && p.on == on {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		p.set = false
		return err
	}
	p.on = on
	p.set = true
	return nil
}

// Close 关闭供电并释放线
func (p *PowerLine) Close() error {
	if p.line == nil {
		return nil
	}
	_ = p.line.SetValue(0)
	err := p.line.Close()
	p.line = nil
	if p.chip != nil {
		_ = p.chip.Close()
		p.chip = nil
	}
	return err
}

// InputLine 只读输入线
type InputLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenInputLine 申请输入线
func OpenInputLine(cfg types.GPIOLineConfig) (*InputLine, error) {
	chip, line, err := requestLine(cfg, gpiocdev.AsInput)
	if err != nil {
		return nil, err
	}
	return &InputLine{chip: chip, line: line}, nil
}

// High 读取电平, 读取失败视为低电平
func (l *InputLine) High() bool {
	if l == nil || l.line == nil {
		return false
	}
	v, err := l.line.Value()
	return err == nil && v == 1
}

// Close 释放线
func (l *InputLine) Close() error {
	if l == nil || l.line == nil {
		return nil
	}
	err := l.line.Close()
	l.line = nil
	if l.chip != nil {
		_ = l.chip.Close()
		l.chip = nil
	}
	return err
}

// ReadStrap 启动时采样温控跳线, 低电平表示强制覆盖
func ReadStrap(cfg types.GPIOLineConfig) (bool, error) {
	line, err := OpenInputLine(cfg)
	if err != nil {
		return false, err
	}
	defer line.Close()

	v, err := line.line.Value()
	if err != nil {
		return false, fmt.Errorf("读取跳线失败: %w", err)
	}
	return v == 0, nil
}

package device

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sstallion/go-hid"
)

const (
	hidReportID    byte = 0x02
	hidReportSize       = 65
	hidReadTimeout      = 200 * time.Millisecond

	cmdSetDuty  byte = 0x21
	cmdQueryRPM byte = 0x22
)

type hidDevice interface {
	Write(b []byte) (int, error)
	ReadWithTimeout(b []byte, timeout time.Duration) (int, error)
	Close() error
}

// HIDFan USB HID 风扇控制器(5A A5 帧格式)
type HIDFan struct {
	mutex       sync.Mutex
	device      hidDevice
	isConnected bool
	channel     byte
}

// OpenHIDFan 打开第一个匹配 VID/PID 的控制器
func OpenHIDFan(vendorID, productID uint16, channel int) (*HIDFan, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("初始化 HID 失败: %w", err)
	}
	dev, err := hid.OpenFirst(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("打开 HID 设备 %04x:%04x 失败: %w", vendorID, productID, err)
	}
	return newHIDFan(dev, channel), nil
}

func newHIDFan(dev hidDevice, channel int) *HIDFan {
	return &HIDFan{device: dev, isConnected: true, channel: byte(channel)}
}

func frameChecksum(payload []byte) byte {
	var sum uint16
	for _, b := range payload[2:] {
		sum += uint16(b)
	}
	return byte(sum & 0xFF)
}

func (f *HIDFan) sendCommandLocked(fields ...byte) error {
	cmd := append([]byte{0x5A, 0xA5}, fields...)
	cmd = append(cmd, frameChecksum(cmd))

	buf := make([]byte, hidReportSize)
	buf[0] = hidReportID
	copy(buf[1:], cmd)

	if _, err := f.device.Write(buf); err != nil {
		f.isConnected = false
		return err
	}
	return nil
}

// SetDuty 下发占空比
func (f *HIDFan) SetDuty(percent int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.isConnected || f.device == nil {
		return ErrNotConnected
	}
	percent = max(0, min(100, percent))
	if err := f.sendCommandLocked(cmdSetDuty, 0x04, f.channel, byte(percent)); err != nil {
		return fmt.Errorf("下发占空比失败: %w", err)
	}
	return nil
}

// ReadRPM 查询转速, 应答帧: [id] 5A A5 22 ch rpmLo rpmHi ...
func (f *HIDFan) ReadRPM() (int, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.isConnected || f.device == nil {
		return 0, ErrNotConnected
	}
	if err := f.sendCommandLocked(cmdQueryRPM, 0x03, f.channel); err != nil {
		return 0, fmt.Errorf("查询转速失败: %w", err)
	}

	buf := make([]byte, hidReportSize)
	n, err := f.device.ReadWithTimeout(buf, hidReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("读取转速应答失败: %w", err)
	}
	if n < 7 || buf[1] != 0x5A || buf[2] != 0xA5 || buf[3] != cmdQueryRPM || buf[4] != f.channel {
		return 0, fmt.Errorf("转速应答格式错误: % x", buf[:n])
	}
	return int(binary.LittleEndian.Uint16(buf[5:7])), nil
}

// Close 关闭设备
func (f *HIDFan) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.device == nil {
		return nil
	}
	err := f.device.Close()
	f.device = nil
	f.isConnected = false
	return err
}

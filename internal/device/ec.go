package device

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultECPath ec_sys 调试接口
const DefaultECPath = "/sys/kernel/debug/ec/ec0/io"

// ECPort EC 寄存器空间, 同一路径的多个风扇共享
type ECPort struct {
	mu   sync.Mutex
	path string
	fd   int
}

// OpenECPort 打开 EC io 文件, 需要 ec_sys write_support=1
func OpenECPort(path string) (*ECPort, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("打开 EC 接口 %s 失败: %w", path, err)
	}
	return &ECPort{path: path, fd: fd}, nil
}

// WriteReg 写单字节寄存器
func (p *ECPort) WriteReg(reg int, value byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return ErrNotConnected
	}
	if _, err := unix.Pwrite(p.fd, []byte{value}, int64(reg)); err != nil {
		return fmt.Errorf("写 EC 寄存器 %#02x 失败: %w", reg, err)
	}
	return nil
}

// ReadWord 读 16 位小端寄存器
func (p *ECPort) ReadWord(reg int) (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return 0, ErrNotConnected
	}
	buf := make([]byte, 2)
	n, err := unix.Pread(p.fd, buf, int64(reg))
	if err != nil {
		return 0, fmt.Errorf("读 EC 寄存器 %#02x 失败: %w", reg, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("读 EC 寄存器 %#02x 长度不足: %d", reg, n)
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// Close 关闭 EC 接口
func (p *ECPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}

// ECFan 通过 EC 寄存器控制的风扇
type ECFan struct {
	port    *ECPort
	dutyReg int
	rpmReg  int
}

// NewECFan 创建 EC 风扇驱动, rpmReg < 0 表示无转速反馈
func NewECFan(port *ECPort, dutyReg, rpmReg int) *ECFan {
	return &ECFan{port: port, dutyReg: dutyReg, rpmReg: rpmReg}
}

// SetDuty 写入占空比寄存器(0-255)
func (f *ECFan) SetDuty(percent int) error {
	return f.port.WriteReg(f.dutyReg, percentToByte(percent))
}

// ReadRPM 读取转速寄存器
func (f *ECFan) ReadRPM() (int, error) {
	if f.rpmReg < 0 {
		return 0, nil
	}
	rpm, err := f.port.ReadWord(f.rpmReg)
	return int(rpm), err
}

// Close 端口由 Bank 的所有者统一关闭
func (f *ECFan) Close() error {
	return nil
}

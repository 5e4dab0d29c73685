package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/TIANLI0/ec-thermalmgmt/internal/logger"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

type fakeFan struct {
	duty   int
	rpm    int
	closed bool
}

func (f *fakeFan) SetDuty(p int) error   { f.duty = p; return nil }
func (f *fakeFan) ReadRPM() (int, error) { return f.rpm, nil }
func (f *fakeFan) Close() error          { f.closed = true; return nil }

type fakeSwitch struct {
	on     []bool
	closed bool
}

func (s *fakeSwitch) Set(on bool) error { s.on = append(s.on, on); return nil }
func (s *fakeSwitch) Close() error      { s.closed = true; return nil }

func TestBankDispatch(t *testing.T) {
	sw := &fakeSwitch{}
	bank := NewBank(sw, logger.NewNop())
	cpu := &fakeFan{rpm: 2400}
	if err := bank.Attach(types.FanCPU, cpu); err != nil {
		t.Fatal(err)
	}
	if err := bank.Attach(types.FanCPU, &fakeFan{}); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("duplicate attach err = %v", err)
	}
	if err := bank.Attach(9, &fakeFan{}); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("out of range attach err = %v", err)
	}

	if err := bank.SetDutyCycle(types.FanCPU, 61); err != nil || cpu.duty != 61 {
		t.Errorf("SetDutyCycle: duty=%d err=%v", cpu.duty, err)
	}
	if rpm, err := bank.ReadRPM(types.FanCPU); err != nil || rpm != 2400 {
		t.Errorf("ReadRPM = %d, %v", rpm, err)
	}
	if err := bank.SetDutyCycle(types.FanRear, 10); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("unbound channel err = %v", err)
	}
	if err := bank.SetPower(true); err != nil || len(sw.on) != 1 || !sw.on[0] {
		t.Errorf("SetPower: %v %v", sw.on, err)
	}

	bank.Close()
	if !cpu.closed || !sw.closed {
		t.Error("Close did not close drivers")
	}
}

func TestPercentToByte(t *testing.T) {
	tests := []struct {
		in   int
		want byte
	}{
		{-5, 0}, {0, 0}, {50, 128}, {100, 255}, {130, 255},
	}
	for _, tt := range tests {
		if got := percentToByte(tt.in); got != tt.want {
			t.Errorf("percentToByte(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHwmonFan(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/hwmon2/fan1_input", []byte("1830\n"), 0o644)
	fan := NewHwmonFan(fs, "/hwmon2/pwm1", "/hwmon2/fan1_input")

	if err := fan.SetDuty(100); err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	enable, _ := afero.ReadFile(fs, "/hwmon2/pwm1_enable")
	pwm, _ := afero.ReadFile(fs, "/hwmon2/pwm1")
	if string(enable) != "1" || string(pwm) != "255" {
		t.Errorf("enable=%q pwm=%q", enable, pwm)
	}

	rpm, err := fan.ReadRPM()
	if err != nil || rpm != 1830 {
		t.Errorf("ReadRPM = %d, %v", rpm, err)
	}

	if err := fan.Close(); err != nil {
		t.Fatal(err)
	}
	enable, _ = afero.ReadFile(fs, "/hwmon2/pwm1_enable")
	if string(enable) != "2" {
		t.Errorf("enable after close = %q", enable)
	}
}

func TestECFan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "io")
	regs := make([]byte, 256)
	regs[0x84] = 0x10
	regs[0x85] = 0x0e
	if err := os.WriteFile(path, regs, 0o600); err != nil {
		t.Fatal(err)
	}

	port, err := OpenECPort(path)
	if err != nil {
		t.Fatalf("OpenECPort: %v", err)
	}
	defer port.Close()

	fan := NewECFan(port, 0x2f, 0x84)
	if err := fan.SetDuty(100); err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	rpm, err := fan.ReadRPM()
	if err != nil || rpm != 0x0e10 {
		t.Errorf("ReadRPM = %#x, %v", rpm, err)
	}

	data, _ := os.ReadFile(path)
	if data[0x2f] != 0xff {
		t.Errorf("duty register = %#x, want 0xff", data[0x2f])
	}

	_ = port.Close()
	if err := fan.SetDuty(10); !errors.Is(err, ErrNotConnected) {
		t.Errorf("write after close err = %v", err)
	}
}

func TestECPortRegisters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "io")
	if err := os.WriteFile(path, make([]byte, 256), 0o600); err != nil {
		t.Fatal(err)
	}

	port, err := OpenECPort(path)
	if err != nil {
		t.Fatalf("OpenECPort: %v", err)
	}

	if err := port.WriteReg(0x40, 0x34); err != nil {
		t.Fatalf("WriteReg: %v", err)
	}
	if err := port.WriteReg(0x41, 0x12); err != nil {
		t.Fatalf("WriteReg: %v", err)
	}
	word, err := port.ReadWord(0x40)
	if err != nil || word != 0x1234 {
		t.Errorf("ReadWord = %#x, %v", word, err)
	}

	_ = port.Close()
	if err := port.WriteReg(0x40, 0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("WriteReg after close err = %v", err)
	}
}

type fakeHID struct {
	written [][]byte
	reply   []byte
	closed  bool
}

func (d *fakeHID) Write(b []byte) (int, error) {
	d.written = append(d.written, append([]byte(nil), b...))
	return len(b), nil
}

func (d *fakeHID) ReadWithTimeout(b []byte, _ time.Duration) (int, error) {
	return copy(b, d.reply), nil
}

func (d *fakeHID) Close() error { d.closed = true; return nil }

func TestHIDFan(t *testing.T) {
	dev := &fakeHID{reply: []byte{0x02, 0x5A, 0xA5, cmdQueryRPM, 0x01, 0xB8, 0x0B}}
	fan := newHIDFan(dev, 1)

	if err := fan.SetDuty(74); err != nil {
		t.Fatalf("SetDuty: %v", err)
	}
	frame := dev.written[0]
	if len(frame) != hidReportSize || frame[0] != hidReportID || frame[1] != 0x5A || frame[2] != 0xA5 {
		t.Fatalf("bad frame header: % x", frame[:8])
	}
	if frame[3] != cmdSetDuty || frame[5] != 1 || frame[6] != 74 {
		t.Errorf("bad set duty payload: % x", frame[:8])
	}
	wantSum := byte(cmdSetDuty + 0x04 + 1 + 74)
	if frame[7] != wantSum {
		t.Errorf("checksum = %#x, want %#x", frame[7], wantSum)
	}

	rpm, err := fan.ReadRPM()
	if err != nil || rpm != 3000 {
		t.Errorf("ReadRPM = %d, %v", rpm, err)
	}

	dev.reply = []byte{0x02, 0x00}
	if _, err := fan.ReadRPM(); err == nil {
		t.Error("expected error on malformed reply")
	}

	_ = fan.Close()
	if !dev.closed {
		t.Error("device not closed")
	}
	if err := fan.SetDuty(10); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SetDuty after close err = %v", err)
	}
}

func TestOpenHwmonBank(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := types.GetDefaultConfig()
	bank, err := Open(cfg, fs, logger.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer bank.Close()

	if chs := bank.Channels(); len(chs) != 2 || chs[0] != types.FanCPU || chs[1] != types.FanRear {
		t.Errorf("Channels = %v", chs)
	}
	if err := bank.SetDutyCycle(types.FanRear, 50); err != nil {
		t.Errorf("SetDutyCycle: %v", err)
	}
}

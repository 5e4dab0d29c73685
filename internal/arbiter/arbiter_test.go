package arbiter

import (
	"errors"
	"testing"

	"github.com/TIANLI0/ec-thermalmgmt/internal/logger"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

type dutyWrite struct {
	ch   types.FanChannel
	duty int
}

type fakeActuator struct {
	writes   []dutyWrite
	power    []bool
	rpm      map[types.FanChannel]int
	failDuty bool
}

func (f *fakeActuator) SetDutyCycle(ch types.FanChannel, percent int) error {
	if f.failDuty {
		return errors.New("pwm busy")
	}
	f.writes = append(f.writes, dutyWrite{ch: ch, duty: percent})
	return nil
}

func (f *fakeActuator) ReadRPM(ch types.FanChannel) (int, error) {
	return f.rpm[ch], nil
}

func (f *fakeActuator) SetPower(on bool) error {
	f.power = append(f.power, on)
	return nil
}

type fakePublisher struct {
	duty map[types.FanChannel]int
	rpm  map[types.FanChannel]int
}

func (p *fakePublisher) PublishFan(ch types.FanChannel, duty, rpm int) {
	p.duty[ch] = duty
	p.rpm[ch] = rpm
}

func newTestArbiter(channels ...Channel) (*Arbiter, *fakeActuator, *fakePublisher, *Overrides) {
	if len(channels) == 0 {
		channels = []Channel{{ID: types.FanCPU, Name: "cpu", StartupDuty: 100, FollowsCPU: true}}
	}
	act := &fakeActuator{rpm: map[types.FanChannel]int{types.FanCPU: 2400, types.FanRear: 1800}}
	pub := &fakePublisher{duty: map[types.FanChannel]int{}, rpm: map[types.FanChannel]int{}}
	ov := &Overrides{}
	a := New(Config{
		Channels:   channels,
		Curve:      types.GetDefaultFanCurve(),
		StrapDuty:  100,
		FanOffTemp: 55,
	}, act, pub, ov, logger.NewNop())
	return a, act, pub, ov
}

func s0(temp types.Celsius) Inputs {
	return Inputs{Power: types.PowerS0, CPUTemp: temp}
}

func TestPowerGateSkipsDutyWrites(t *testing.T) {
	for _, in := range []Inputs{
		{Power: types.PowerS3, CPUTemp: 60},
		{Power: types.PowerS5, CPUTemp: 60},
		{Power: types.PowerS0, ConnectedStandby: true, CPUTemp: 60},
	} {
		a, act, _, _ := newTestArbiter()
		a.Run(in)

		if len(act.power) != 1 || act.power[0] {
			t.Errorf("%+v: power calls = %v, want [false]", in, act.power)
		}
		if len(act.writes) != 0 {
			t.Errorf("%+v: duty writes = %v, want none", in, act.writes)
		}
	}
}

func TestStrapOverrideWinsOverHost(t *testing.T) {
	a, act, pub, ov := newTestArbiter()
	ov.SetStrap(true)
	ov.SetACPIMode(true)
	ov.SetHostDuty(types.FanCPU, 80)

	a.Run(s0(40))

	if got := a.States()[0]; got.Duty != 100 || got.Source != SourceStrap {
		t.Errorf("state = %+v, want strap duty 100", got)
	}
	if len(act.writes) != 1 || act.writes[0].duty != 100 {
		t.Errorf("writes = %v", act.writes)
	}
	if pub.duty[types.FanCPU] != 100 || pub.rpm[types.FanCPU] != 2400 {
		t.Errorf("published duty=%d rpm=%d", pub.duty[types.FanCPU], pub.rpm[types.FanCPU])
	}
}

func TestHostDutyWhenACPIMode(t *testing.T) {
	a, _, _, ov := newTestArbiter()
	ov.SetACPIMode(true)
	ov.SetHostDuty(types.FanCPU, 80)

	a.Run(s0(40))
	if got := a.States()[0]; got.Duty != 80 || got.Source != SourceHost {
		t.Errorf("state = %+v, want host duty 80", got)
	}

	ov.SetECSelfControl(true)
	a.Run(s0(40))
	if got := a.States()[0]; got.Source != SourceEC {
		t.Errorf("EC self-control should win, got %+v", got)
	}
}

func TestBIOSOverrideReplacesCPUDuty(t *testing.T) {
	a, _, _, ov := newTestArbiter(
		Channel{ID: types.FanCPU, Name: "cpu", StartupDuty: 100, FollowsCPU: true},
		Channel{ID: types.FanRear, Name: "rear", StartupDuty: 100, FollowsCPU: true},
	)
	ov.SetBIOSFanOverride(true, 65)
	ov.SetHostDuty(types.FanCPU, 30)
	ov.SetHostDuty(types.FanRear, 30)

	a.Run(s0(40))
	states := a.States()
	if states[0].Duty != 65 {
		t.Errorf("cpu duty = %d, want BIOS speed 65", states[0].Duty)
	}
	if states[1].Duty != 30 {
		t.Errorf("rear duty = %d, want host duty 30", states[1].Duty)
	}
}

func TestECCurveAndDirtyFlag(t *testing.T) {
	a, act, pub, _ := newTestArbiter()

	a.Run(s0(50))
	a.Run(s0(50))
	a.Run(s0(46))

	if len(act.writes) != 1 || act.writes[0].duty != 23 {
		t.Fatalf("writes = %v, want a single write of 23", act.writes)
	}
	if pub.duty[types.FanCPU] != 23 {
		t.Errorf("published duty = %d", pub.duty[types.FanCPU])
	}
}

func TestActuatorFailureRetriesNextCycle(t *testing.T) {
	a, act, _, _ := newTestArbiter()
	act.failDuty = true

	a.Run(s0(50))
	st := a.States()[0]
	if !st.Dirty || st.Applied != -1 {
		t.Fatalf("failed write must leave state dirty, got %+v", st)
	}

	act.failDuty = false
	a.Run(s0(50))
	st = a.States()[0]
	if st.Dirty || st.Applied != 23 || len(act.writes) != 1 {
		t.Errorf("retry state = %+v, writes = %v", st, act.writes)
	}
}

func TestBSODOverrideEdgeTriggered(t *testing.T) {
	a, act, _, ov := newTestArbiter()
	ov.SetBSOD(90, 100)

	a.Run(s0(60))
	if a.States()[0].Duty != 23 {
		t.Fatalf("baseline duty = %d", a.States()[0].Duty)
	}

	a.Run(s0(95))
	if got := a.States()[0]; got.Duty != 100 || got.Source != SourceBSOD || !a.BSODCrossed() {
		t.Fatalf("crossing state = %+v crossed=%v", got, a.BSODCrossed())
	}
	writes := len(act.writes)

	// 仍高于阈值且占空比已达下限: 不再重复下发
	a.Run(s0(96))
	a.Run(s0(95))
	if len(act.writes) != writes {
		t.Errorf("redundant writes after latch: %v", act.writes[writes:])
	}
	if !a.BSODCrossed() {
		t.Error("latch cleared while still hot")
	}

	a.Run(s0(50))
	if got := a.States()[0]; got.Duty != 0 || got.Source != SourceBSOD || a.BSODCrossed() {
		t.Errorf("falling edge state = %+v crossed=%v", got, a.BSODCrossed())
	}

	a.Run(s0(50))
	if got := a.States()[0]; got.Source != SourceEC {
		t.Errorf("normal control should resume, got %+v", got)
	}
}

func TestBSODOverrideHoldsFloorOverHostDuty(t *testing.T) {
	a, act, _, ov := newTestArbiter()
	ov.SetACPIMode(true)
	ov.SetHostDuty(types.FanCPU, 30)
	ov.SetBSOD(90, 100)

	a.Run(s0(60))
	for range 6 {
		a.Run(s0(95))
	}
	want := []dutyWrite{{types.FanCPU, 30}, {types.FanCPU, 100}}
	if len(act.writes) != len(want) || act.writes[0] != want[0] || act.writes[1] != want[1] {
		t.Fatalf("writes = %v, want %v", act.writes, want)
	}
	if got := a.States()[0]; got.Duty != 100 || got.Source != SourceBSOD {
		t.Errorf("latched state = %+v", got)
	}

	a.Run(s0(50))
	if got := a.States()[0]; got.Duty != 0 || a.BSODCrossed() {
		t.Errorf("falling edge state = %+v crossed=%v", got, a.BSODCrossed())
	}

	a.Run(s0(50))
	if got := a.States()[0]; got.Duty != 30 || got.Source != SourceHost {
		t.Errorf("host control should resume, got %+v", got)
	}
}

func TestHostTakeoverKeepsCurrentDuty(t *testing.T) {
	a, act, _, ov := newTestArbiter()

	a.Run(s0(85))
	if got := a.States()[0].Duty; got != 74 {
		t.Fatalf("curve duty = %d, want 74", got)
	}

	ov.SetACPIMode(true)
	a.Run(s0(85))
	if got := a.States()[0]; got.Duty != 74 || got.Source != SourceHost {
		t.Errorf("takeover state = %+v, want 74 held", got)
	}
	if len(act.writes) != 1 {
		t.Errorf("writes = %v, want no write before host duty", act.writes)
	}

	ov.SetHostDuty(types.FanCPU, 40)
	a.Run(s0(85))
	if got := a.States()[0].Duty; got != 40 {
		t.Errorf("host duty = %d, want 40", got)
	}

	// 重新接管时丢弃上一次会话的写入
	ov.SetACPIMode(false)
	a.Run(s0(85))
	ov.SetACPIMode(true)
	a.Run(s0(85))
	if got := a.States()[0]; got.Duty != 74 || got.Source != SourceHost {
		t.Errorf("second takeover state = %+v, want 74 held", got)
	}
}

func TestHostDutyUnsetAfterTakeover(t *testing.T) {
	var ov Overrides
	ov.SetHostDuty(types.FanRear, 55)
	if duty, ok := ov.HostDuty(types.FanRear); !ok || duty != 55 {
		t.Fatalf("HostDuty = %d, %v", duty, ok)
	}

	ov.SetBIOSFanOverride(true, 60)
	if _, ok := ov.HostDuty(types.FanRear); ok {
		t.Error("host duty survived takeover")
	}

	ov.SetHostDuty(types.FanRear, 35)
	ov.SetACPIMode(true)
	if duty, ok := ov.HostDuty(types.FanRear); !ok || duty != 35 {
		t.Errorf("HostDuty while already owned = %d, %v", duty, ok)
	}

	if _, ok := ov.HostDuty(types.FanChannelCount); ok {
		t.Error("out-of-range channel reported a duty")
	}
}

func TestForceMaxOnProbeFailure(t *testing.T) {
	a, _, _, _ := newTestArbiter()
	a.Run(Inputs{Power: types.PowerS0, CPUTemp: 30, ForceMax: true})
	if got := a.States()[0]; got.Duty != 100 || got.Source != SourceFailSafe {
		t.Errorf("state = %+v, want forced 100", got)
	}
}

func TestRepowerReappliesDuty(t *testing.T) {
	a, act, _, _ := newTestArbiter()
	a.Run(s0(50))
	a.Run(Inputs{Power: types.PowerS3})
	a.Run(s0(50))

	if len(act.writes) != 2 {
		t.Errorf("writes = %v, want re-apply after power on", act.writes)
	}
}

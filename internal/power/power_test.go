package power

import (
	"testing"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

func TestTrackerCSExitCallback(t *testing.T) {
	tr := NewTracker(types.PowerS0)
	calls := 0
	tr.OnCSExit(func() { calls++ })

	tr.SetConnectedStandby(false)
	tr.SetConnectedStandby(true)
	if !tr.IsConnectedStandby() || calls != 0 {
		t.Fatalf("enter CS: cs=%v calls=%d", tr.IsConnectedStandby(), calls)
	}
	tr.SetConnectedStandby(true)
	tr.SetConnectedStandby(false)
	if calls != 1 {
		t.Errorf("exit CS callbacks = %d, want 1", calls)
	}
}

func TestTrackerPowerState(t *testing.T) {
	tr := NewTracker(types.PowerS5)
	if tr.CurrentPowerState() != types.PowerS5 {
		t.Fatalf("initial state = %s", tr.CurrentPowerState())
	}
	tr.SetPowerState(types.PowerS0)
	if tr.CurrentPowerState() != types.PowerS0 {
		t.Errorf("state = %s, want S0", tr.CurrentPowerState())
	}
}

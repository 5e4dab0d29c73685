package statusview

import (
	"strings"
	"testing"

	"github.com/TIANLI0/ec-thermalmgmt/internal/hoststatus"
	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

func TestStatusText(t *testing.T) {
	tests := []struct {
		status uint8
		want   string
	}{
		{0, "未初始化"},
		{types.StatusInit, "正常"},
		{types.StatusInit | types.StatusLowTrip, "低温"},
		{types.StatusInit | types.StatusHighTrip, "高温"},
		{types.StatusInit | types.StatusLowTrip | types.StatusHighTrip, "低温+高温"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.status); got != tt.want {
			t.Errorf("StatusText(%#x) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	b := hoststatus.NewBlock()
	b.PublishCPUTemp(64)
	b.PublishCritTemp(105)
	b.PublishLocation(types.LocationVR, 632, types.StatusInit|types.StatusHighTrip)
	b.PublishFan(types.FanCPU, 36, 2100)

	snap, err := hoststatus.Decode(b.Encode())
	if err != nil {
		t.Fatal(err)
	}

	out := Render(snap, Options{FanNames: map[types.FanChannel]string{types.FanCPU: "cpu"}})
	for _, want := range []string{"ecthermald", "64°C", "vr", "63.2°C", "高温", "cpu", "2100 RPM"} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q:\n%s", want, out)
		}
	}
}

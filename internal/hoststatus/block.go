// Package hoststatus 维护主机可见的温控状态块
//
// 布局(小端):
//
//	0       int16   CPU 温度 °C
//	2       int16   GPU 温度 °C
//	4       uint16  最近一次发布的阈值告警聚合位
//	6       int16   关机阈值 °C
//	8+3*i   int16   位置 i 的温度(0.1°C) + uint8 状态位, i < 16
//	56+3*f  uint8   风扇 f 的占空比 + uint16 转速, f < 4
//
// 每个字段独立原子存储, 主机读取时不保证跨字段一致。
package hoststatus

import (
	"encoding/binary"
	"errors"
	"sync/atomic"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

const (
	offCPUTemp   = 0
	offGPUTemp   = 2
	offAlert     = 4
	offCritTemp  = 6
	offLocations = 8
	locationSize = 3
	offFans      = offLocations + types.LocationCount*locationSize
	fanSize      = 3

	// Size 状态块字节数
	Size = offFans + types.FanChannelCount*fanSize
)

// ErrShortBlock 状态块长度不足
var ErrShortBlock = errors.New("hoststatus: short block")

type location struct {
	value  atomic.Int32
	status atomic.Uint32
}

type fan struct {
	duty atomic.Uint32
	rpm  atomic.Uint32
}

// Block 主机可见状态, 只由温控任务写入
type Block struct {
	cpuTemp   atomic.Int32
	gpuTemp   atomic.Int32
	alert     atomic.Uint32
	critTemp  atomic.Int32
	locations [types.LocationCount]location
	fans      [types.FanChannelCount]fan
}

// NewBlock 创建状态块
func NewBlock() *Block {
	return &Block{}
}

// PublishCPUTemp 上报 CPU 温度
func (b *Block) PublishCPUTemp(t types.Celsius) { b.cpuTemp.Store(int32(t)) }

// PublishGPUTemp 上报 GPU 温度
func (b *Block) PublishGPUTemp(t types.Celsius) { b.gpuTemp.Store(int32(t)) }

// PublishAlert 上报阈值告警聚合位
func (b *Block) PublishAlert(bits uint16) { b.alert.Store(uint32(bits)) }

// PublishCritTemp 上报关机阈值
func (b *Block) PublishCritTemp(t types.Celsius) { b.critTemp.Store(int32(t)) }

// PublishLocation 上报某位置的温度和状态位
func (b *Block) PublishLocation(loc types.SensorLocation, value types.DeciCelsius, status uint8) {
	if int(loc) >= len(b.locations) {
		return
	}
	b.locations[loc].value.Store(int32(value))
	b.locations[loc].status.Store(uint32(status))
}

// PublishFan 上报风扇占空比与转速
func (b *Block) PublishFan(ch types.FanChannel, duty, rpm int) {
	if ch < 0 || int(ch) >= len(b.fans) {
		return
	}
	b.fans[ch].duty.Store(uint32(duty))
	b.fans[ch].rpm.Store(uint32(rpm))
}

// Encode 按固定布局编码
func (b *Block) Encode() []byte {
	buf := make([]byte, Size)
	le := binary.LittleEndian

	le.PutUint16(buf[offCPUTemp:], uint16(int16(b.cpuTemp.Load())))
	le.PutUint16(buf[offGPUTemp:], uint16(int16(b.gpuTemp.Load())))
	le.PutUint16(buf[offAlert:], uint16(b.alert.Load()))
	le.PutUint16(buf[offCritTemp:], uint16(int16(b.critTemp.Load())))

	for i := range b.locations {
		off := offLocations + i*locationSize
		le.PutUint16(buf[off:], uint16(int16(b.locations[i].value.Load())))
		buf[off+2] = uint8(b.locations[i].status.Load())
	}
	for i := range b.fans {
		off := offFans + i*fanSize
		buf[off] = uint8(b.fans[i].duty.Load())
		le.PutUint16(buf[off+1:], uint16(min(b.fans[i].rpm.Load(), 0xffff)))
	}
	return buf
}

// LocationStatus 解码后的位置字段
type LocationStatus struct {
	Value  types.DeciCelsius
	Status uint8
}

// FanStatus 解码后的风扇字段
type FanStatus struct {
	Duty int
	RPM  int
}

// Snapshot 解码后的状态块
type Snapshot struct {
	CPUTemp   types.Celsius
	GPUTemp   types.Celsius
	Alert     uint16
	CritTemp  types.Celsius
	Locations [types.LocationCount]LocationStatus
	Fans      [types.FanChannelCount]FanStatus
}

// Decode 解码状态块
func Decode(buf []byte) (Snapshot, error) {
	var s Snapshot
	if len(buf) < Size {
		return s, ErrShortBlock
	}
	le := binary.LittleEndian

	s.CPUTemp = types.Celsius(int16(le.Uint16(buf[offCPUTemp:])))
	s.GPUTemp = types.Celsius(int16(le.Uint16(buf[offGPUTemp:])))
	s.Alert = le.Uint16(buf[offAlert:])
	s.CritTemp = types.Celsius(int16(le.Uint16(buf[offCritTemp:])))

	for i := range s.Locations {
		off := offLocations + i*locationSize
		s.Locations[i] = LocationStatus{
			Value:  types.DeciCelsius(int16(le.Uint16(buf[off:]))),
			Status: buf[off+2],
		}
	}
	for i := range s.Fans {
		off := offFans + i*fanSize
		s.Fans[i] = FanStatus{
			Duty: int(buf[off]),
			RPM:  int(le.Uint16(buf[off+1:])),
		}
	}
	return s, nil
}

package timeline

import (
	"fmt"

	"honnef.co/go/zonetrack/trace"
)

type DrawType uint8

const (
	// DrawFolded stands for a run of zones that are too small to be drawn individually.
	DrawFolded DrawType = iota
	DrawZone
)

func (typ DrawType) String() string {
	switch typ {
	case DrawFolded:
		return "Folded"
	case DrawZone:
		return "Zone"
	default:
		return fmt.Sprintf("DrawType(%d)", typ)
	}
}

type DrawSubType uint8

const (
	SubTypeThread DrawSubType = iota
	SubTypeCore
)

// Draw describes one drawable zone or run of folded zones.
type Draw struct {
	Type    DrawType
	SubType DrawSubType
	Depth   uint16
	// The zone, or the first zone of a folded run
	Zone  *trace.Zone
	Start trace.Timestamp
	End   trace.Timestamp
	// Compressed thread ID. Zero for folded runs on core tracks that span multiple threads.
	Thread uint16
	// Number of folded zones. Zero for DrawZone.
	Count uint32
}

type ContextSwitchDrawType uint8

const (
	ContextSwitchWaiting ContextSwitchDrawType = iota
	ContextSwitchFolded
	ContextSwitchRunning
)

func (typ ContextSwitchDrawType) String() string {
	switch typ {
	case ContextSwitchWaiting:
		return "Waiting"
	case ContextSwitchFolded:
		return "Folded"
	case ContextSwitchRunning:
		return "Running"
	default:
		return fmt.Sprintf("ContextSwitchDrawType(%d)", typ)
	}
}

// ContextSwitchDraw describes one segment of a context switch band.
type ContextSwitchDraw struct {
	Type ContextSwitchDrawType
	// Index of the context switch record. For Waiting, the record that follows the wait.
	Index uint32
	// Number of records; greater than one only for folded runs.
	Count uint32
	// Set for waits on thread tracks where the thread was made runnable before it was scheduled. The wait is split
	// into blocked time before Wakeup and time spent waiting for a core after it.
	Readied bool
	Wakeup  trace.Timestamp
}

// SampleDraw describes a sample, or a cluster of samples that are too close to tell apart.
type SampleDraw struct {
	// Index of the first sample
	Index uint32
	// Number of additional samples merged into this one
	Extra uint32
}

type MessageDraw struct {
	// The first message of the cluster
	Message   *trace.Message
	Highlight bool
	Count     uint32
}

// Package trace defines the read-only view of profiling data that the timeline preprocessors consume: zones (spans)
// organized in per-thread trees, per-core context switch records, samples and messages.
//
// All collections are sorted by time. Zones of one array never overlap and a zone's range contains the ranges of all
// of its descendants. Context switch records of one core are strictly increasing and never overlap.
package trace

// Timestamp is a point in time, in nanoseconds since the start of the trace.
type Timestamp int64

// Unresolved is the End of zones and context switches that are still in progress.
const Unresolved Timestamp = -1

type Zone struct {
	Start Timestamp
	// End is negative while the zone is still open.
	End Timestamp
	// Child is an index into the store's child arrays, or -1 if the zone has no children.
	Child int32
}

//gcassert:inline
func (z *Zone) EndValid() bool { return z.End >= 0 }

//gcassert:inline
func (z *Zone) HasChildren() bool { return z.Child >= 0 }

// Zones is a sorted array of sibling zones. The store keeps zones in one of two representations: DirectZones for
// arrays that will not change anymore, and IndirectZones for arrays that are still being appended to and whose
// elements must not move.
type Zones interface {
	Len() int
	AtPtr(idx int) *Zone
}

type DirectZones []Zone

func (zs DirectZones) Len() int            { return len(zs) }
func (zs DirectZones) AtPtr(idx int) *Zone { return &zs[idx] }

type IndirectZones []*Zone

func (zs IndirectZones) Len() int            { return len(zs) }
func (zs IndirectZones) AtPtr(idx int) *Zone { return zs[idx] }

// ZoneRef is a stable handle to a top-level zone of a thread. It stays valid when the store changes the thread's
// representation from IndirectZones to DirectZones.
type ZoneRef struct {
	// Compressed thread ID
	Thread uint16
	// Index into the thread's top-level timeline
	Index uint32
}

// ContextSwitch records which thread was resident on a CPU core during [Start, End].
type ContextSwitch struct {
	Start Timestamp
	// End is negative while the thread is still running on the core.
	End Timestamp
	// Compressed thread ID
	Thread uint16
}

func (cs *ContextSwitch) EndValid() bool { return cs.End >= 0 }

// EffectiveEnd returns End for finished records and Start for the record that is still in effect.
func (cs *ContextSwitch) EffectiveEnd() Timestamp {
	if cs.EndValid() {
		return cs.End
	}
	return cs.Start
}

type ContextSwitches interface {
	Len() int
	AtPtr(idx int) *ContextSwitch
}

type ContextSwitchSlice []ContextSwitch

func (css ContextSwitchSlice) Len() int                     { return len(css) }
func (css ContextSwitchSlice) AtPtr(idx int) *ContextSwitch { return &css[idx] }

// ThreadContextSwitch records a period during which a thread was running on some CPU core.
type ThreadContextSwitch struct {
	// When the thread was made runnable
	Wakeup Timestamp
	Start  Timestamp
	End    Timestamp
	CPU    uint16
}

func (cs *ThreadContextSwitch) EndValid() bool { return cs.End >= 0 }

func (cs *ThreadContextSwitch) EffectiveEnd() Timestamp {
	if cs.EndValid() {
		return cs.End
	}
	return cs.Start
}

type Sample struct {
	Time Timestamp
}

type Message struct {
	Time Timestamp
	// ID of the thread that logged the message
	Thread uint64
	Text   string
}

type Thread struct {
	ID   uint64
	Name string
	// Top-level zones
	Timeline        Zones
	ContextSwitches []ThreadContextSwitch
	Samples         []Sample
	Messages        []*Message
}

// Store is the interface that the preprocessors use to access trace data. Implementations must not modify data
// while a frame is being preprocessed.
type Store interface {
	// ZoneEnd returns the end of a zone, or the current time for zones that are still open.
	ZoneEnd(z *Zone) Timestamp
	// Children returns the children of a zone. It must only be called for zones that have children.
	Children(z *Zone) Zones
	// CompressedThreadCount returns the number of compressed thread IDs in use.
	CompressedThreadCount() int
	DecompressThread(comprTid uint16) uint64
	// LocalThread returns the thread with the given ID, if it was traced by the profiled program.
	LocalThread(tid uint64) (*Thread, bool)
	// Threads returns the threads of the profiled program in the order they were first seen.
	Threads() []*Thread
	CPUCount() int
	ContextSwitches(cpu int) ContextSwitches
	// Now returns the most recent timestamp in the trace. It never decreases.
	Now() Timestamp
	// IsDataStatic reports whether the capture has finished and no more data will arrive.
	IsDataStatic() bool
}

package trace

import (
	"fmt"

	"honnef.co/go/zonetrack/mem"
	"honnef.co/go/zonetrack/slices"
)

// Trace is an in-memory Store that is built incrementally, the way a live capture delivers data. Trace itself does
// no locking; producers and consumers that run concurrently coordinate through a mysync.Mutex[*Trace].
type Trace struct {
	threads     map[uint64]*thread
	threadOrder []*Thread
	// compressed thread ID -> thread ID
	compressed      []uint64
	compressedByTID map[uint64]uint16
	children        []Zones
	cpus            []*mem.BucketSlice[ContextSwitch]
	now             Timestamp
	static          bool
}

type thread struct {
	*Thread
	top IndirectZones
	// stack of open zones
	open []*Zone
}

var _ Store = (*Trace)(nil)

func NewTrace() *Trace {
	t := &Trace{
		threads:         map[uint64]*thread{},
		compressedByTID: map[uint64]uint16{},
	}
	// Compressed ID 0 always refers to thread 0, which context switch records use for "no thread".
	t.compress(0)
	return t
}

func (t *Trace) compress(tid uint64) uint16 {
	if c, ok := t.compressedByTID[tid]; ok {
		return c
	}
	if len(t.compressed) > 0xFFFF {
		panic(fmt.Sprintf("too many threads, cannot compress thread %d", tid))
	}
	c := uint16(len(t.compressed))
	t.compressed = append(t.compressed, tid)
	t.compressedByTID[tid] = c
	return c
}

// CompressThread returns the compressed ID of a thread, assigning a new one if necessary.
func (t *Trace) CompressThread(tid uint64) uint16 { return t.compress(tid) }

func (t *Trace) advance(ts Timestamp) {
	if ts > t.now {
		t.now = ts
	}
}

func (t *Trace) mutable() {
	if t.static {
		panic("trace was modified after Finish")
	}
}

// AddThread registers a thread of the profiled program. Zones, samples and messages can only be recorded for
// registered threads. Context switches may refer to any thread.
func (t *Trace) AddThread(tid uint64, name string) *Thread {
	t.mutable()
	if th, ok := t.threads[tid]; ok {
		return th.Thread
	}
	th := &thread{Thread: &Thread{ID: tid, Name: name}}
	th.Timeline = th.top
	t.threads[tid] = th
	t.threadOrder = append(t.threadOrder, th.Thread)
	t.compress(tid)
	return th.Thread
}

func (t *Trace) thread(tid uint64) *thread {
	th, ok := t.threads[tid]
	if !ok {
		panic(fmt.Sprintf("thread %d has not been registered", tid))
	}
	return th
}

// Threads returns all registered threads in registration order.
func (t *Trace) Threads() []*Thread { return t.threadOrder }

// BeginZone opens a new zone on a thread. The zone becomes a child of the innermost open zone, if any.
func (t *Trace) BeginZone(tid uint64, start Timestamp) *Zone {
	t.mutable()
	th := t.thread(tid)
	z := &Zone{Start: start, End: Unresolved, Child: -1}
	if parent, ok := slices.Last(th.open); ok {
		if !parent.HasChildren() {
			parent.Child = int32(len(t.children))
			t.children = append(t.children, IndirectZones(nil))
		}
		t.children[parent.Child] = append(t.children[parent.Child].(IndirectZones), z)
	} else {
		th.top = append(th.top, z)
		th.Timeline = th.top
	}
	th.open = append(th.open, z)
	t.advance(start)
	return z
}

// EndZone closes the innermost open zone of a thread.
func (t *Trace) EndZone(tid uint64, end Timestamp) {
	t.mutable()
	th := t.thread(tid)
	z, open, ok := slices.Pop(th.open)
	if !ok {
		panic(fmt.Sprintf("thread %d has no open zone", tid))
	}
	th.open = open
	z.End = end
	t.advance(end)
}

func (t *Trace) cpu(cpu int) *mem.BucketSlice[ContextSwitch] {
	for len(t.cpus) <= cpu {
		t.cpus = append(t.cpus, new(mem.BucketSlice[ContextSwitch]))
	}
	return t.cpus[cpu]
}

// StartContextSwitch records that a thread started running on a CPU core. The record stays unresolved until
// EndContextSwitch is called for the same core.
func (t *Trace) StartContextSwitch(cpu int, tid uint64, start Timestamp) {
	t.StartContextSwitchWakeup(cpu, tid, start, start)
}

// StartContextSwitchWakeup is like StartContextSwitch, but also records when the thread was made runnable.
func (t *Trace) StartContextSwitchWakeup(cpu int, tid uint64, wakeup, start Timestamp) {
	t.mutable()
	css := t.cpu(cpu)
	if last := css.Last(); last != nil && !last.EndValid() {
		panic(fmt.Sprintf("context switch on CPU %d started while previous one is still open", cpu))
	}
	css.Append(ContextSwitch{Start: start, End: Unresolved, Thread: t.compress(tid)})
	if th, ok := t.threads[tid]; ok {
		th.ContextSwitches = append(th.ContextSwitches, ThreadContextSwitch{
			Wakeup: wakeup,
			Start:  start,
			End:    Unresolved,
			CPU:    uint16(cpu),
		})
	}
	t.advance(start)
}

// EndContextSwitch closes the open context switch record of a CPU core.
func (t *Trace) EndContextSwitch(cpu int, end Timestamp) {
	t.mutable()
	last := t.cpu(cpu).Last()
	if last == nil || last.EndValid() {
		panic(fmt.Sprintf("CPU %d has no open context switch", cpu))
	}
	last.End = end
	if th, ok := t.threads[t.compressed[last.Thread]]; ok {
		if n := len(th.ContextSwitches); n > 0 && !th.ContextSwitches[n-1].EndValid() {
			th.ContextSwitches[n-1].End = end
		}
	}
	t.advance(end)
}

func (t *Trace) AddSample(tid uint64, ts Timestamp) {
	t.mutable()
	th := t.thread(tid)
	th.Samples = append(th.Samples, Sample{Time: ts})
	t.advance(ts)
}

func (t *Trace) AddMessage(tid uint64, ts Timestamp, text string) *Message {
	t.mutable()
	th := t.thread(tid)
	msg := &Message{Time: ts, Thread: tid, Text: text}
	th.Messages = append(th.Messages, msg)
	t.advance(ts)
	return msg
}

// Finish marks the capture as complete and converts all zone arrays to their flat representation. The trace must
// not be modified afterwards. Zones that are still open stay open.
func (t *Trace) Finish() {
	if t.static {
		return
	}
	t.static = true
	for _, th := range t.threads {
		if len(th.open) != 0 {
			// Open zones are referenced by pointer; keep their arrays indirect.
			continue
		}
		th.Timeline = flatten(th.top)
		th.top = nil
	}
	for i, zs := range t.children {
		if ind, ok := zs.(IndirectZones); ok && allClosed(ind) {
			t.children[i] = flatten(ind)
		}
	}
}

func allClosed(zs IndirectZones) bool {
	for _, z := range zs {
		if !z.EndValid() {
			return false
		}
	}
	return true
}

func flatten(zs IndirectZones) DirectZones {
	out := make(DirectZones, len(zs))
	for i, z := range zs {
		out[i] = *z
	}
	return out
}

func (t *Trace) ZoneEnd(z *Zone) Timestamp {
	if z.EndValid() {
		return z.End
	}
	return t.now
}

func (t *Trace) Children(z *Zone) Zones { return t.children[z.Child] }

func (t *Trace) CompressedThreadCount() int { return len(t.compressed) }

func (t *Trace) DecompressThread(comprTid uint16) uint64 {
	if int(comprTid) >= len(t.compressed) {
		return 0
	}
	return t.compressed[comprTid]
}

func (t *Trace) LocalThread(tid uint64) (*Thread, bool) {
	th, ok := t.threads[tid]
	if !ok {
		return nil, false
	}
	return th.Thread, true
}

func (t *Trace) CPUCount() int { return len(t.cpus) }

func (t *Trace) ContextSwitches(cpu int) ContextSwitches {
	if cpu >= len(t.cpus) {
		return ContextSwitchSlice(nil)
	}
	return t.cpus[cpu]
}

func (t *Trace) Now() Timestamp { return t.now }

func (t *Trace) IsDataStatic() bool { return t.static }

package timeline

import (
	"math"

	"honnef.co/go/zonetrack/mem"
	"honnef.co/go/zonetrack/trace"
)

// ThreadLUT maps compressed thread IDs to local threads. Entries of threads that weren't traced are nil.
type ThreadLUT []*trace.Thread

func NewThreadLUT(store trace.Store) ThreadLUT {
	return ThreadLUT(nil).update(store)
}

func (lut ThreadLUT) Thread(comprTid uint16) *trace.Thread {
	if int(comprTid) >= len(lut) {
		return nil
	}
	return lut[comprTid]
}

// Zone resolves a zone reference. The referenced thread must be local.
func (lut ThreadLUT) Zone(ref trace.ZoneRef) *trace.Zone {
	return lut[ref.Thread].Timeline.AtPtr(int(ref.Index))
}

// update rebuilds the table if the store knows about more threads than the table covers.
func (lut ThreadLUT) update(store trace.Store) ThreadLUT {
	n := min(store.CompressedThreadCount(), math.MaxUint16)
	if n <= len(lut) {
		return lut
	}
	lut = mem.EnsureLen(lut, n)
	for c := range lut {
		lut[c] = nil
		if th, ok := store.LocalThread(store.DecompressThread(uint16(c))); ok {
			lut[c] = th
		}
	}
	return lut
}

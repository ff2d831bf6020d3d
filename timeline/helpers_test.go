package timeline

import (
	"testing"
	"time"

	"honnef.co/go/zonetrack/trace"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// viewFor returns a context for [start, end) whose MinVisible is minVis.
func viewFor(start, end, minVis trace.Timestamp) Context {
	return Context{Start: start, End: end, NsPerPx: float64(minVis) / 3}
}

type span struct{ start, end trace.Timestamp }

func addZones(tr *trace.Trace, tid uint64, spans ...span) {
	for _, s := range spans {
		tr.BeginZone(tid, s.start)
		tr.EndZone(tid, s.end)
	}
}

type record struct {
	tid        uint64
	start, end trace.Timestamp
}

func addSwitches(tr *trace.Trace, cpu int, recs ...record) {
	for _, r := range recs {
		tr.StartContextSwitch(cpu, r.tid, r.start)
		if r.end >= 0 {
			tr.EndContextSwitch(cpu, r.end)
		}
	}
}

var ignoreZone = cmpopts.IgnoreFields(Draw{}, "Zone")

func diffDraws(t *testing.T, got, want []Draw) {
	t.Helper()
	if diff := cmp.Diff(want, got, ignoreZone); diff != "" {
		t.Errorf("draws mismatch (-want +got):\n%s", diff)
	}
}

// fakeClock advances by step every time it is read.
func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

package fixture

import (
	"fmt"
	"sort"

	"honnef.co/go/zonetrack/trace"
)

// Build checks the fixture and replays it into a new trace.
func (f *Fixture) Build() (*trace.Trace, error) {
	if err := f.check(); err != nil {
		return nil, err
	}

	tr := trace.NewTrace()
	for _, th := range f.Threads {
		tr.AddThread(th.ID, th.Name)
		for _, z := range th.Zones {
			replayZone(tr, th.ID, z)
		}
		for _, ts := range th.Samples {
			tr.AddSample(th.ID, ts)
		}
		for _, msg := range th.Messages {
			tr.AddMessage(th.ID, msg.Time, msg.Text)
		}
	}

	// Replay switches in global start order, so that the per-thread lists come out sorted.
	type pending struct {
		cpu int
		sw  Switch
	}
	var all []pending
	for cpu, sws := range f.CPUs {
		for _, sw := range sws {
			all = append(all, pending{cpu, sw})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].sw.Start < all[j].sw.Start })
	for _, p := range all {
		wakeup := p.sw.Wakeup
		if wakeup == 0 {
			wakeup = p.sw.Start
		}
		tr.StartContextSwitchWakeup(p.cpu, p.sw.Thread, wakeup, p.sw.Start)
		if p.sw.End >= 0 {
			tr.EndContextSwitch(p.cpu, p.sw.End)
		}
	}

	if f.Static {
		tr.Finish()
	}
	return tr, nil
}

func replayZone(tr *trace.Trace, tid uint64, z Zone) {
	tr.BeginZone(tid, z.Start)
	for _, c := range z.Children {
		replayZone(tr, tid, c)
	}
	if z.End >= 0 {
		tr.EndZone(tid, z.End)
	}
}

func (f *Fixture) check() error {
	known := map[uint64]bool{0: true}
	for _, id := range f.External {
		known[id] = true
	}
	for _, th := range f.Threads {
		if th.ID == 0 {
			return fmt.Errorf("thread 0 is reserved for idle cores")
		}
		known[th.ID] = true
		if err := checkZones(th.Zones, 0, -1); err != nil {
			return fmt.Errorf("thread %d: %w", th.ID, err)
		}
		for i := 1; i < len(th.Samples); i++ {
			if th.Samples[i] < th.Samples[i-1] {
				return fmt.Errorf("thread %d: sample %d: %w", th.ID, i, ErrUnsorted)
			}
		}
		for i := 1; i < len(th.Messages); i++ {
			if th.Messages[i].Time < th.Messages[i-1].Time {
				return fmt.Errorf("thread %d: message %d: %w", th.ID, i, ErrUnsorted)
			}
		}
	}

	for cpu, sws := range f.CPUs {
		for i, sw := range sws {
			if !known[sw.Thread] {
				return fmt.Errorf("CPU %d: switch %d: thread %d: %w", cpu, i, sw.Thread, ErrUnknownThread)
			}
			if sw.End >= 0 && sw.End < sw.Start {
				return fmt.Errorf("CPU %d: switch %d ends before it starts: %w", cpu, i, ErrUnsorted)
			}
			if sw.Wakeup > sw.Start {
				return fmt.Errorf("CPU %d: switch %d starts before its thread woke up: %w", cpu, i, ErrUnsorted)
			}
			if i == 0 {
				continue
			}
			prev := sws[i-1]
			if prev.End < 0 {
				return fmt.Errorf("CPU %d: switch %d follows a switch that is still in effect: %w", cpu, i, ErrUnsorted)
			}
			if sw.Start < prev.End {
				return fmt.Errorf("CPU %d: switch %d overlaps its predecessor: %w", cpu, i, ErrUnsorted)
			}
		}
	}
	return nil
}

// checkZones checks that siblings are sorted and don't overlap, that they lie within their parent, and that only the
// last sibling is open. parentEnd is negative for open parents and top-level zones.
func checkZones(zs []Zone, parentStart, parentEnd trace.Timestamp) error {
	for i, z := range zs {
		if z.Start < parentStart {
			return fmt.Errorf("zone at %d starts before its parent: %w", z.Start, ErrUnsorted)
		}
		if z.End >= 0 && z.End < z.Start {
			return fmt.Errorf("zone at %d ends before it starts: %w", z.Start, ErrUnsorted)
		}
		if parentEnd >= 0 && (z.End < 0 || z.End > parentEnd) {
			return fmt.Errorf("zone at %d ends after its parent: %w", z.Start, ErrUnsorted)
		}
		if z.End < 0 && i != len(zs)-1 {
			return fmt.Errorf("open zone at %d has siblings after it: %w", z.Start, ErrUnsorted)
		}
		if i > 0 && z.Start < zs[i-1].End {
			return fmt.Errorf("zone at %d overlaps its predecessor: %w", z.Start, ErrUnsorted)
		}
		if err := checkZones(z.Children, z.Start, z.End); err != nil {
			return err
		}
	}
	return nil
}

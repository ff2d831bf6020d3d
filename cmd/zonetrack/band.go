package main

import (
	"bytes"
	"errors"
	"flag"
	"log"

	"honnef.co/go/zonetrack/timeline"
	"honnef.co/go/zonetrack/trace"

	"honnef.co/go/stuff/math/mathutil"
)

func bandMain(args []string) {
	if err := cmdBand(args); err != nil {
		log.Fatalf("zonetrack band: error: %v", err)
	}
}

func cmdBand(args []string) error {
	var vf viewFlags
	fs := flag.NewFlagSet("zonetrack band", flag.ExitOnError)
	vf.register(fs, 80)
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) != 1 {
		return errors.New("expected exactly 1 positional arg: fixture filename")
	}
	settings, err := vf.settings()
	if err != nil {
		return err
	}
	mu, err := load(argv[0])
	if err != nil {
		return err
	}

	store, unlock := mu.RLock()
	view := vf.view(store)
	unlock.RUnlock()

	tl := timeline.NewTimeline(mu, settings)
	if err := settle(tl, view); err != nil {
		return err
	}
	defer tl.FrameFinished()

	store, unlock = mu.RLock()
	defer unlock.RUnlock()
	for _, ct := range tl.Cores() {
		spans := switchSpans(store, view, store.ContextSwitches(ct.CPU()), ct.ContextSwitchDraws())
		local.Printf("%-8s |%s|\n", ct.Label(), renderBand(spans, view, vf.width))
	}
	return nil
}

type bandSpan struct {
	start, end trace.Timestamp
	mark       byte
}

func recordEnd(store trace.Store, rec *trace.ContextSwitch) trace.Timestamp {
	if rec.EndValid() {
		return rec.End
	}
	return store.Now()
}

// switchSpans converts context switch draws to time spans. Waiting markers cover the gap before their record, or the
// record itself if the core was idle.
func switchSpans(
	store trace.Store,
	view timeline.Context,
	cs trace.ContextSwitches,
	draws []timeline.ContextSwitchDraw,
) []bandSpan {
	spans := make([]bandSpan, 0, len(draws))
	for _, d := range draws {
		i := int(d.Index)
		rec := cs.AtPtr(i)
		switch d.Type {
		case timeline.ContextSwitchFolded:
			last := cs.AtPtr(i + int(d.Count) - 1)
			spans = append(spans, bandSpan{rec.Start, last.EffectiveEnd(), '#'})
		case timeline.ContextSwitchRunning:
			spans = append(spans, bandSpan{rec.Start, recordEnd(store, rec), 'R'})
		case timeline.ContextSwitchWaiting:
			prevEnd := view.Start
			if i > 0 {
				prevEnd = cs.AtPtr(i - 1).EffectiveEnd()
			}
			if prevEnd < rec.Start {
				spans = append(spans, bandSpan{prevEnd, rec.Start, '.'})
			} else {
				spans = append(spans, bandSpan{rec.Start, recordEnd(store, rec), '.'})
			}
		}
	}
	return spans
}

// renderBand marks every column with the span that covers the column's center.
func renderBand(spans []bandSpan, view timeline.Context, width int) string {
	out := bytes.Repeat([]byte{' '}, width)
	j := 0
	for c := range out {
		t := trace.Timestamp(mathutil.Lerp(int64(view.Start), int64(view.End), (float64(c)+0.5)/float64(width)))
		for j < len(spans) && spans[j].end < t {
			j++
		}
		if j < len(spans) && spans[j].start <= t {
			out[c] = spans[j].mark
		}
	}
	return string(out)
}

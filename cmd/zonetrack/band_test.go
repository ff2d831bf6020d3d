package main

import (
	"testing"

	"honnef.co/go/zonetrack/timeline"
	"honnef.co/go/zonetrack/trace"
)

func TestRenderBand(t *testing.T) {
	view := timeline.Context{Start: 0, End: 80}
	spans := []bandSpan{
		{0, 30, 'R'},
		{30, 50, '.'},
		{50, 80, 'R'},
	}
	if got, want := renderBand(spans, view, 8), "RRR..RRR"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := renderBand(nil, view, 4), "    "; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSwitchSpans(t *testing.T) {
	tr := trace.NewTrace()
	tr.AddThread(1, "main")
	tr.StartContextSwitch(0, 1, 0)
	tr.EndContextSwitch(0, 10)
	tr.StartContextSwitch(0, 0, 10)
	tr.EndContextSwitch(0, 20)
	tr.StartContextSwitch(0, 1, 40)
	tr.EndContextSwitch(0, 50)

	draws := []timeline.ContextSwitchDraw{
		{Type: timeline.ContextSwitchRunning, Index: 0, Count: 1},
		{Type: timeline.ContextSwitchWaiting, Index: 1, Count: 1},
		{Type: timeline.ContextSwitchWaiting, Index: 2, Count: 1},
		{Type: timeline.ContextSwitchFolded, Index: 2, Count: 1},
	}
	got := switchSpans(tr, timeline.Context{Start: 0, End: 50}, tr.ContextSwitches(0), draws)
	want := []bandSpan{
		{0, 10, 'R'},
		// The idle record itself
		{10, 20, '.'},
		// The gap before the last record
		{20, 40, '.'},
		{40, 50, '#'},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d spans, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

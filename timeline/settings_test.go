package timeline

import (
	"testing"

	"honnef.co/go/zonetrack/container"

	"gioui.org/unit"
)

func TestParseCollapseMode(t *testing.T) {
	for _, mode := range []CollapseMode{CollapseDynamic, CollapseMax, CollapseLimit} {
		got, err := ParseCollapseMode(mode.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != mode {
			t.Errorf("ParseCollapseMode(%q) = %v", mode.String(), got)
		}
	}
	if _, err := ParseCollapseMode("deep"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestCollapseDepth(t *testing.T) {
	for _, tc := range []struct {
		settings CollapseSettings
		want     int
	}{
		{CollapseSettings{Mode: CollapseDynamic}, 2},
		{CollapseSettings{Mode: CollapseMax}, 5},
		{CollapseSettings{Mode: CollapseLimit, Clamp: 3}, 3},
		{CollapseSettings{Mode: CollapseLimit, Clamp: 7}, 5},
		{CollapseSettings{Mode: CollapseLimit, Clamp: -1}, 0},
	} {
		if got := tc.settings.depth(2, 5); got != tc.want {
			t.Errorf("%+v: got depth %d, want %d", tc.settings, got, tc.want)
		}
	}
}

func TestTrackOverride(t *testing.T) {
	global := CollapseSettings{Mode: CollapseMax}
	var track TrackSettings
	if got := track.resolve(global); got != global {
		t.Errorf("got %+v without override, want %+v", got, global)
	}
	override := CollapseSettings{Mode: CollapseLimit, Clamp: 1}
	track.Collapse = container.Some(override)
	if got := track.resolve(global); got != override {
		t.Errorf("got %+v with override, want %+v", got, override)
	}
}

func TestContextMinimums(t *testing.T) {
	ctx := NewContext(0, 1000, 100, unit.Metric{})
	if ctx.NsPerPx != 10 {
		t.Fatalf("got %v ns/px, want 10", ctx.NsPerPx)
	}
	if got := ctx.MinVisible(); got != 30 {
		t.Errorf("MinVisible = %d, want 30", got)
	}
	if got := ctx.MinContextSwitchVisible(); got != 40 {
		t.Errorf("MinContextSwitchVisible = %d, want 40", got)
	}
	if got := ctx.MinSampleVisible(); got != 50 {
		t.Errorf("MinSampleVisible = %d, want 50", got)
	}

	ctx.Metric.PxPerDp = 2
	if got := ctx.MinVisible(); got != 60 {
		t.Errorf("MinVisible at scale 2 = %d, want 60", got)
	}
}

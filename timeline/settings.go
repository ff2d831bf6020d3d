package timeline

import (
	"fmt"

	"honnef.co/go/zonetrack/container"
	"honnef.co/go/zonetrack/trace"
)

// CollapseMode controls how many nesting levels a track displays.
type CollapseMode uint8

const (
	// CollapseDynamic shows as many levels as are visible in the current window.
	CollapseDynamic CollapseMode = iota
	// CollapseMax always reserves space for the deepest level of the track, even if it is off-screen.
	CollapseMax
	// CollapseLimit shows at most a fixed number of levels.
	CollapseLimit
)

var collapseModeNames = [...]string{
	CollapseDynamic: "dynamic",
	CollapseMax:     "max",
	CollapseLimit:   "limit",
}

func (mode CollapseMode) String() string {
	if int(mode) < len(collapseModeNames) {
		return collapseModeNames[mode]
	}
	return fmt.Sprintf("CollapseMode(%d)", mode)
}

func ParseCollapseMode(s string) (CollapseMode, error) {
	for mode, name := range collapseModeNames {
		if name == s {
			return CollapseMode(mode), nil
		}
	}
	return 0, fmt.Errorf("unknown collapse mode %q", s)
}

type CollapseSettings struct {
	Mode CollapseMode
	// Maximum number of levels in CollapseLimit mode
	Clamp int
}

// TrackSettings are per-track overrides of the view settings.
type TrackSettings struct {
	Collapse container.Option[CollapseSettings]
}

// ViewSettings are shared by all tracks of a timeline. They must not be modified while a frame is being
// preprocessed.
type ViewSettings struct {
	// Collapse settings for thread tracks
	Stack CollapseSettings
	// Collapse settings for CPU core tracks
	Core CollapseSettings

	DrawContextSwitches bool
	DrawSamples         bool
	DrawMessages        bool

	// Clusters of messages containing this message are highlighted.
	HighlightMessage *trace.Message
}

func DefaultViewSettings() ViewSettings {
	return ViewSettings{
		DrawContextSwitches: true,
		DrawSamples:         true,
		DrawMessages:        true,
	}
}

func (track TrackSettings) resolve(global CollapseSettings) CollapseSettings {
	return track.Collapse.GetOr(global)
}

func (cs CollapseSettings) depth(dynamic, maxDepth int) int {
	switch cs.Mode {
	case CollapseMax:
		return maxDepth
	case CollapseLimit:
		return clamp(cs.Clamp, 0, maxDepth)
	default:
		return dynamic
	}
}

// Package timeline turns an append-only history of zones and context switches into a bounded list of draw
// descriptors for an arbitrary visible time window.
//
// Preprocessing happens once per frame. Each track queues its work on a TaskDispatch; tracks don't share mutable
// state, so their work runs in parallel. Within a track everything is synchronous.
package timeline

import (
	"math"

	"honnef.co/go/zonetrack/trace"

	"gioui.org/unit"
	"golang.org/x/exp/constraints"
)

const (
	// Zones narrower than this get folded.
	minVisSizeDp unit.Dp = 3
	// Context switches narrower than this get folded.
	minCtxSizeDp unit.Dp = 4
	// Samples closer than this get merged.
	minSampleSizeDp unit.Dp = 5
)

// Context describes the visible window of a frame.
type Context struct {
	Start trace.Timestamp
	End   trace.Timestamp
	// Nanoseconds per pixel
	NsPerPx float64
	// UI scale. A zero PxPerDp is treated as 1.
	Metric unit.Metric
}

// NewContext returns the context for displaying [start, end) in widthPx pixels.
func NewContext(start, end trace.Timestamp, widthPx int, metric unit.Metric) Context {
	widthPx = clamp(widthPx, 1, math.MaxInt32)
	return Context{
		Start:   start,
		End:     end,
		NsPerPx: float64(end-start) / float64(widthPx),
		Metric:  metric,
	}
}

func (ctx Context) minDuration(dp unit.Dp) trace.Timestamp {
	scale := ctx.Metric.PxPerDp
	if scale == 0 {
		scale = 1
	}
	return trace.Timestamp(math.Round(float64(scale) * float64(dp) * ctx.NsPerPx))
}

// MinVisible returns the shortest duration that is drawn as an individual zone.
func (ctx Context) MinVisible() trace.Timestamp { return ctx.minDuration(minVisSizeDp) }

// MinContextSwitchVisible returns the shortest duration that is drawn as an individual context switch.
func (ctx Context) MinContextSwitchVisible() trace.Timestamp { return ctx.minDuration(minCtxSizeDp) }

func (ctx Context) MinSampleVisible() trace.Timestamp { return ctx.minDuration(minSampleSizeDp) }

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

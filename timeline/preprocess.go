package timeline

import (
	"math"
	"sort"

	"honnef.co/go/zonetrack/trace"
)

// Preprocessor computes the draw items of a zone tree. It holds no mutable state and may be shared by goroutines.
type Preprocessor struct {
	store        trace.Store
	maxDrawDepth int
	mode         CollapseMode
}

// NewPreprocessor returns a preprocessor. maxDrawDepth is only used in CollapseLimit mode, where levels at or below
// it are measured but not emitted.
func NewPreprocessor(store trace.Store, maxDrawDepth int, mode CollapseMode) *Preprocessor {
	return &Preprocessor{
		store:        store,
		maxDrawDepth: maxDrawDepth,
		mode:         mode,
	}
}

// PreprocessZoneLevel appends the draw items for zones that intersect ctx's window to out and returns the depth of the
// tree under zones, counting zones as level 1. Nothing is appended if visible is false, but the depth is still computed.
func (pre *Preprocessor) PreprocessZoneLevel(
	ctx Context,
	zones trace.Zones,
	subtype DrawSubType,
	thread uint16,
	visible bool,
	out *[]Draw,
) int {
	return pre.zoneLevel(ctx.Start, ctx.End, ctx.MinVisible(), zones, subtype, thread, 0, visible, out)
}

// PreprocessZone is like PreprocessZoneLevel, but for a single zone and the part of its subtree that intersects ctx's
// window. The zone itself is emitted regardless of its size.
func (pre *Preprocessor) PreprocessZone(
	ctx Context,
	z *trace.Zone,
	subtype DrawSubType,
	thread uint16,
	visible bool,
	out *[]Draw,
) int {
	if pre.mode == CollapseLimit {
		visible = visible && pre.maxDrawDepth > 0
	}
	depth := 1
	if z.HasChildren() {
		depth = pre.zoneLevel(ctx.Start, ctx.End, ctx.MinVisible(), pre.store.Children(z), subtype, thread, 1, visible, out)
	}
	if visible {
		*out = append(*out, Draw{
			Type:    DrawZone,
			SubType: subtype,
			Zone:    z,
			Start:   z.Start,
			End:     pre.store.ZoneEnd(z),
			Thread:  thread,
		})
	}
	return depth
}

// visibleRange returns the indices of the zones that intersect [start, end). ok is false if there are none.
func (pre *Preprocessor) visibleRange(zones trace.Zones, start, end trace.Timestamp) (lo, hi int, ok bool) {
	n := zones.Len()
	lo = sort.Search(n, func(i int) bool { return pre.store.ZoneEnd(zones.AtPtr(i)) >= start })
	if lo == n {
		return 0, 0, false
	}
	hi = lo + sort.Search(n-lo, func(i int) bool { return zones.AtPtr(lo+i).Start >= end })
	if lo == hi {
		return 0, 0, false
	}
	// An open zone ends at the current time, which may lag behind the window.
	if first := zones.AtPtr(lo); !first.EndValid() && pre.store.ZoneEnd(first) < start {
		return 0, 0, false
	}
	if pre.store.ZoneEnd(zones.AtPtr(hi-1)) < start {
		return 0, 0, false
	}
	return lo, hi, true
}

func (pre *Preprocessor) zoneLevel(
	start, end, minVis trace.Timestamp,
	zones trace.Zones,
	subtype DrawSubType,
	thread uint16,
	depth int,
	visible bool,
	out *[]Draw,
) int {
	if pre.mode == CollapseLimit {
		visible = visible && depth < pre.maxDrawDepth
	}

	it, itEnd, ok := pre.visibleRange(zones, start, end)
	if !ok {
		return depth
	}

	maxDepth := depth + 1
	for it < itEnd {
		z := zones.AtPtr(it)
		zEnd := pre.store.ZoneEnd(z)
		if zEnd-z.Start < minVis {
			// Fold neighbors for as long as the gap between consecutive ends stays below the threshold.
			next := it + 1
			nextTime := zEnd + minVis
			for {
				base := next
				next = base + sort.Search(itEnd-base, func(i int) bool {
					return pre.store.ZoneEnd(zones.AtPtr(base+i)) >= nextTime
				})
				if next == itEnd {
					break
				}
				pt := pre.store.ZoneEnd(zones.AtPtr(next - 1))
				nt := pre.store.ZoneEnd(zones.AtPtr(next))
				if nt-pt >= minVis {
					break
				}
				nextTime = nt + minVis
			}
			if visible {
				*out = append(*out, Draw{
					Type:    DrawFolded,
					SubType: subtype,
					Depth:   uint16(depth),
					Zone:    z,
					Start:   z.Start,
					End:     pre.store.ZoneEnd(zones.AtPtr(next - 1)),
					Thread:  thread,
					Count:   uint32(next - it),
				})
			}
			it = next
		} else {
			if z.HasChildren() {
				d := pre.zoneLevel(start, end, minVis, pre.store.Children(z), subtype, thread, depth+1, visible, out)
				maxDepth = max(maxDepth, d)
			}
			if visible {
				*out = append(*out, Draw{
					Type:    DrawZone,
					SubType: subtype,
					Depth:   uint16(depth),
					Zone:    z,
					Start:   z.Start,
					End:     zEnd,
					Thread:  thread,
				})
			}
			it++
		}
	}
	return maxDepth
}

// CalculateMaxZoneDepth returns the depth of the deepest zone under zones.
func (pre *Preprocessor) CalculateMaxZoneDepth(zones trace.Zones) int {
	return pre.CalculateMaxZoneDepthInRange(zones, 0, math.MaxInt64)
}

// CalculateMaxZoneDepthInRange returns the depth of the deepest zone under zones that intersects [start, end). It
// doesn't fold, so small zones count.
func (pre *Preprocessor) CalculateMaxZoneDepthInRange(zones trace.Zones, start, end trace.Timestamp) int {
	return pre.maxDepthInRange(zones, start, end, 0)
}

func (pre *Preprocessor) maxDepthInRange(zones trace.Zones, start, end trace.Timestamp, depth int) int {
	it, itEnd, ok := pre.visibleRange(zones, start, end)
	if !ok {
		return depth
	}
	maxDepth := depth + 1
	for ; it < itEnd; it++ {
		z := zones.AtPtr(it)
		if !z.HasChildren() {
			continue
		}
		cStart := max(start, z.Start)
		cEnd := min(end, pre.store.ZoneEnd(z))
		maxDepth = max(maxDepth, pre.maxDepthInRange(pre.store.Children(z), cStart, cEnd, depth+1))
	}
	return maxDepth
}

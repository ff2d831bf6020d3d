package timeline

import (
	"fmt"
	"sort"

	"honnef.co/go/zonetrack/trace"
)

// CoreTrack shows which threads ran on one CPU core, and the zones they executed while doing so.
type CoreTrack struct {
	store    trace.Store
	cpu      int
	settings *ViewSettings
	Settings TrackSettings

	buf *ZoneBuffer
	lut ThreadLUT

	draws    []Draw
	ctxDraws []ContextSwitchDraw
	depth    int
	maxDepth int
	// Keep requesting frames while the buffer catches up with static data.
	keepActive bool
}

func NewCoreTrack(store trace.Store, cpu int, settings *ViewSettings) *CoreTrack {
	return &CoreTrack{
		store:    store,
		cpu:      cpu,
		settings: settings,
		buf:      NewZoneBuffer(store, DefaultPageSize),
	}
}

func (track *CoreTrack) Label() string { return fmt.Sprintf("CPU %d", track.cpu) }

func (track *CoreTrack) CPU() int { return track.cpu }

// Buffer returns the track's zone index.
func (track *CoreTrack) Buffer() *ZoneBuffer { return track.buf }

func (track *CoreTrack) Draws() []Draw { return track.draws }

func (track *CoreTrack) ContextSwitchDraws() []ContextSwitchDraw { return track.ctxDraws }

func (track *CoreTrack) collapse() CollapseSettings {
	return track.Settings.resolve(track.settings.Core)
}

// Depth returns the number of zone levels the track needs space for.
func (track *CoreTrack) Depth() int {
	return track.collapse().depth(track.depth, track.maxDepth)
}

// Preprocess queues the track's work for the frame. Tracks that aren't visible only advance their index.
func (track *CoreTrack) Preprocess(ctx Context, td *TaskDispatch, visible bool) {
	track.keepActive = track.store.IsDataStatic()
	cs := track.store.ContextSwitches(track.cpu)
	if cs.Len() == 0 {
		return
	}
	td.Queue(func() { track.preprocess(ctx, cs, visible) })
}

func (track *CoreTrack) preprocess(ctx Context, cs trace.ContextSwitches, visible bool) {
	track.lut = track.lut.update(track.store)
	maxDepth := track.buf.Update(track.lut, cs, true)
	track.maxDepth = max(track.maxDepth, maxDepth)

	csRange := track.buf.FindContextSwitchRange(ctx.Start, ctx.End, cs)
	zoneRange := track.buf.FindZoneRange(ctx.Start, ctx.End, csRange)

	collapse := track.collapse()
	drawVisible := true
	if collapse.Mode == CollapseLimit {
		maxDepth = clamp(collapse.Clamp, 0, maxDepth)
		drawVisible = maxDepth > 0
	}
	pre := NewPreprocessor(track.store, maxDepth, collapse.Mode)
	// Off-screen tracks still need their depth for layout.
	track.depth = track.PreprocessZones(ctx, cs, zoneRange, pre, visible && drawVisible)
	track.maxDepth = max(track.maxDepth, track.depth)
	if visible {
		track.PreprocessContextSwitches(ctx, cs, csRange)
	}
}

// PreprocessZones appends the draw items of the entries in r and returns the depth they need. Runs of entries that
// are too small to see get folded into one item at depth 0, even if they belong to different threads. If visible is
// false, nothing is appended but the depth is still computed.
func (track *CoreTrack) PreprocessZones(
	ctx Context,
	cs trace.ContextSwitches,
	r ZoneRange,
	pre *Preprocessor,
	visible bool,
) int {
	if r.Beg >= r.End {
		return 0
	}
	restore := track.buf.OverrideRangeEnd(r)
	defer restore()

	minVis := ctx.MinVisible()
	maxDepth := 1
	for g := r.Beg; g < r.End; {
		info := track.buf.ZoneInfo(g)
		rec := cs.AtPtr(info.CSIndex)
		z := track.buf.Zone(g)
		start := max(rec.Start, z.Start)
		end := min(rec.End, track.store.ZoneEnd(z))

		if end-start < minVis {
			last := min(track.buf.FoldRun(g, minVis), r.End-1)
			lastInfo := track.buf.ZoneInfo(last)
			lastEnd := min(track.store.ZoneEnd(track.buf.Zone(last)), cs.AtPtr(lastInfo.CSIndex).End)
			count := last - g + 1
			if visible {
				var thread uint16
				if count == 1 {
					thread = rec.Thread
				}
				track.draws = append(track.draws, Draw{
					Type:    DrawFolded,
					SubType: SubTypeCore,
					Zone:    z,
					Start:   start,
					End:     lastEnd,
					Thread:  thread,
					Count:   uint32(count),
				})
			}
			g = last + 1
			continue
		}

		clamped := ctx
		clamped.Start = max(ctx.Start, start)
		clamped.End = min(ctx.End, end)
		first := len(track.draws)
		d := pre.PreprocessZone(clamped, z, SubTypeCore, rec.Thread, visible, &track.draws)
		for i := first; i < len(track.draws); i++ {
			dr := &track.draws[i]
			dr.Start = max(dr.Start, rec.Start)
			dr.End = min(dr.End, rec.End)
		}
		maxDepth = max(maxDepth, d)
		g++
	}
	return maxDepth
}

// PreprocessContextSwitches appends the context switch band for the records in r. Gaps between records are shown
// as waiting, and runs of records too short to see are folded.
func (track *CoreTrack) PreprocessContextSwitches(ctx Context, cs trace.ContextSwitches, r ContextSwitchRange) {
	n := cs.Len()
	if r.Beg == r.End {
		if r.Beg > 0 && r.Beg < n {
			track.ctxDraws = append(track.ctxDraws, ContextSwitchDraw{Type: ContextSwitchWaiting, Index: uint32(r.Beg), Count: 1})
		}
		return
	}

	minCtx := ctx.MinContextSwitchVisible()
	it := r.Beg
	prevEnd := cs.AtPtr(it).Start
	if it > 0 && prevEnd > ctx.Start {
		prev := cs.AtPtr(it - 1)
		prevEnd = 0
		if prev.EndValid() {
			prevEnd = prev.End
		}
	}

	for it < r.End {
		rec := cs.AtPtr(it)
		start := rec.Start
		end := rec.EffectiveEnd()
		if prevEnd != start {
			track.ctxDraws = append(track.ctxDraws, ContextSwitchDraw{Type: ContextSwitchWaiting, Index: uint32(it), Count: 1})
		}
		prevEnd = end

		next := it + 1
		if end-start < minCtx {
			nextTime := end + minCtx
			for {
				base := next
				next = base + sort.Search(r.End-base, func(i int) bool {
					return cs.AtPtr(base+i).EffectiveEnd() >= nextTime
				})
				if next == r.End {
					break
				}
				pt := cs.AtPtr(next - 1).EffectiveEnd()
				nt := cs.AtPtr(next).EffectiveEnd()
				if nt-pt >= minCtx {
					break
				}
				nextTime = nt + minCtx
			}
			track.ctxDraws = append(track.ctxDraws, ContextSwitchDraw{Type: ContextSwitchFolded, Index: uint32(it), Count: uint32(next - it)})
		} else {
			track.ctxDraws = append(track.ctxDraws, track.stateDraw(rec.Thread, it))
		}
		it = next
	}

	// The record after the range is still in progress. It only counts as running if it directly follows the range.
	if it != n && prevEnd < ctx.End {
		rec := cs.AtPtr(it)
		var thread uint16
		if prevEnd == rec.Start {
			thread = rec.Thread
		}
		track.ctxDraws = append(track.ctxDraws, track.stateDraw(thread, it))
	}
}

// stateDraw classifies a record as running a thread or idling. Thread 0 means that the core was idle.
func (track *CoreTrack) stateDraw(comprTid uint16, idx int) ContextSwitchDraw {
	typ := ContextSwitchRunning
	if track.store.DecompressThread(comprTid) == 0 {
		typ = ContextSwitchWaiting
	}
	return ContextSwitchDraw{Type: typ, Index: uint32(idx), Count: 1}
}

// DrawFinished clears the frame's draw lists and reports whether the track wants another frame.
func (track *CoreTrack) DrawFinished() bool {
	clear(track.draws)
	track.draws = track.draws[:0]
	track.ctxDraws = track.ctxDraws[:0]
	return track.keepActive && track.buf.HasMoreDataToProcess()
}

type CoreStats struct {
	CPU                int
	Pages              int
	Zones              int
	ProcessedCS        int
	TotalCS            int
	MaxDepth           int
	MemoryUsage        int
	Pending            bool
	DrawItems          int
	ContextSwitchItems int
}

func (track *CoreTrack) Stats() CoreStats {
	return CoreStats{
		CPU:                track.cpu,
		Pages:              track.buf.PageCount(),
		Zones:              track.buf.ZoneCount(),
		ProcessedCS:        track.buf.ProcessedCount(),
		TotalCS:            track.store.ContextSwitches(track.cpu).Len(),
		MaxDepth:           track.maxDepth,
		MemoryUsage:        track.buf.MemoryUsage(),
		Pending:            track.buf.HasMoreDataToProcess(),
		DrawItems:          len(track.draws),
		ContextSwitchItems: len(track.ctxDraws),
	}
}

package timeline

import (
	"cmp"
	"fmt"

	"honnef.co/go/zonetrack/trace"

	"golang.org/x/exp/slices"
)

// ThreadTrack shows the zones of one thread, along with the thread's context switches, samples and messages.
type ThreadTrack struct {
	store    trace.Store
	thread   *trace.Thread
	comprTid uint16
	settings *ViewSettings
	Settings TrackSettings

	draws       []Draw
	ctxDraws    []ContextSwitchDraw
	sampleDraws []SampleDraw
	msgDraws    []MessageDraw

	depth        int
	maxZoneDepth int
	// Number of top-level zones when maxZoneDepth was last computed
	depthComputedFor int

	hasContextSwitches bool
	hasSamples         bool
	hasMessages        bool
}

func NewThreadTrack(store trace.Store, thread *trace.Thread, comprTid uint16, settings *ViewSettings) *ThreadTrack {
	return &ThreadTrack{
		store:    store,
		thread:   thread,
		comprTid: comprTid,
		settings: settings,
	}
}

func (track *ThreadTrack) Label() string {
	if track.thread.Name != "" {
		return track.thread.Name
	}
	return fmt.Sprintf("Thread %d", track.thread.ID)
}

func (track *ThreadTrack) Thread() *trace.Thread { return track.thread }

func (track *ThreadTrack) Draws() []Draw { return track.draws }

func (track *ThreadTrack) ContextSwitchDraws() []ContextSwitchDraw { return track.ctxDraws }

func (track *ThreadTrack) SampleDraws() []SampleDraw { return track.sampleDraws }

func (track *ThreadTrack) MessageDraws() []MessageDraw { return track.msgDraws }

func (track *ThreadTrack) HasContextSwitches() bool { return track.hasContextSwitches }

func (track *ThreadTrack) HasSamples() bool { return track.hasSamples }

func (track *ThreadTrack) HasMessages() bool { return track.hasMessages }

func (track *ThreadTrack) collapse() CollapseSettings {
	return track.Settings.resolve(track.settings.Stack)
}

// Depth returns the number of zone levels the track needs space for.
func (track *ThreadTrack) Depth() int {
	return track.collapse().depth(track.depth, track.maxZoneDepth)
}

// Preprocess queues the track's work for the frame. Zones, context switches, samples and messages are independent
// and are processed in parallel.
func (track *ThreadTrack) Preprocess(ctx Context, td *TaskDispatch, visible bool) {
	td.Queue(func() { track.preprocessZones(ctx, visible) })

	track.hasContextSwitches = false
	if track.settings.DrawContextSwitches && len(track.thread.ContextSwitches) > 0 {
		td.Queue(func() { track.PreprocessContextSwitches(ctx, visible) })
	}

	track.hasSamples = false
	if track.settings.DrawSamples && len(track.thread.Samples) > 0 {
		td.Queue(func() { track.PreprocessSamples(ctx, visible) })
	}

	track.hasMessages = false
	if track.settings.DrawMessages && len(track.thread.Messages) > 0 {
		td.Queue(func() { track.PreprocessMessages(ctx, visible) })
	}
}

func (track *ThreadTrack) updateMaxZoneDepth() {
	zones := track.thread.Timeline
	n := zones.Len()
	// Zones are added to the subtree of the last top-level zone for as long as it is open.
	growing := n > 0 && !zones.AtPtr(n-1).EndValid()
	if n == track.depthComputedFor && !growing {
		return
	}
	pre := NewPreprocessor(track.store, 0, CollapseDynamic)
	track.maxZoneDepth = max(track.maxZoneDepth, pre.CalculateMaxZoneDepth(zones))
	track.depthComputedFor = n
}

func (track *ThreadTrack) preprocessZones(ctx Context, visible bool) {
	track.updateMaxZoneDepth()
	collapse := track.collapse()
	maxDepth := track.maxZoneDepth
	if collapse.Mode == CollapseLimit {
		maxDepth = clamp(collapse.Clamp, 0, maxDepth)
	}
	pre := NewPreprocessor(track.store, maxDepth, collapse.Mode)
	track.depth = pre.PreprocessZoneLevel(ctx, track.thread.Timeline, SubTypeThread, track.comprTid, visible, &track.draws)
	track.maxZoneDepth = max(track.maxZoneDepth, track.depth)
}

// PreprocessContextSwitches computes the thread's running band. The records just outside the window are included so
// that the band reaches the window's edges.
func (track *ThreadTrack) PreprocessContextSwitches(ctx Context, visible bool) {
	vec := track.thread.ContextSwitches
	it, _ := slices.BinarySearchFunc(vec, max(ctx.Start, 0), func(cs trace.ThreadContextSwitch, t trace.Timestamp) int {
		return cmp.Compare(cs.EffectiveEnd(), t)
	})
	if it == len(vec) {
		return
	}
	if it > 0 {
		it--
	}
	itEnd, _ := slices.BinarySearchFunc(vec[it:], ctx.End, func(cs trace.ThreadContextSwitch, t trace.Timestamp) int {
		return cmp.Compare(cs.Start, t)
	})
	itEnd += it
	if it == itEnd {
		return
	}
	if itEnd != len(vec) {
		itEnd++
	}

	track.hasContextSwitches = true
	if !visible {
		return
	}

	minCtx := ctx.MinContextSwitchVisible()
	for first := true; it < itEnd; first = false {
		cs := &vec[it]
		if !first {
			wait := ContextSwitchDraw{Type: ContextSwitchWaiting, Index: uint32(it), Count: 1}
			if cs.Wakeup != cs.Start {
				wait.Readied = true
				wait.Wakeup = cs.Wakeup
			}
			track.ctxDraws = append(track.ctxDraws, wait)
		}
		end := cs.EffectiveEnd()
		if end-cs.Start >= minCtx {
			track.ctxDraws = append(track.ctxDraws, ContextSwitchDraw{Type: ContextSwitchRunning, Index: uint32(it), Count: 1})
			it++
			continue
		}

		next := it + 1
		nextTime := end + minCtx
		for {
			off, _ := slices.BinarySearchFunc(vec[next:itEnd], nextTime, func(cs trace.ThreadContextSwitch, t trace.Timestamp) int {
				return cmp.Compare(cs.EffectiveEnd(), t)
			})
			next += off
			if next == itEnd {
				break
			}
			pt := vec[next-1].EffectiveEnd()
			nt := vec[next].EffectiveEnd()
			if nt-pt >= minCtx {
				break
			}
			nextTime = nt + minCtx
		}
		track.ctxDraws = append(track.ctxDraws, ContextSwitchDraw{Type: ContextSwitchFolded, Index: uint32(it), Count: uint32(next - it)})
		it = next
	}
}

func sampleCmp(s trace.Sample, t trace.Timestamp) int { return cmp.Compare(s.Time, t) }

// PreprocessSamples merges samples that are closer together than can be told apart. Samples slightly before the
// window are included because their markers extend into it.
func (track *ThreadTrack) PreprocessSamples(ctx Context, visible bool) {
	vec := track.thread.Samples
	minVis := ctx.MinSampleVisible()
	it, _ := slices.BinarySearchFunc(vec, ctx.Start-minVis, sampleCmp)
	if it == len(vec) {
		return
	}
	itEnd, _ := slices.BinarySearchFunc(vec[it:], ctx.End, sampleCmp)
	itEnd += it
	if it == itEnd {
		return
	}

	track.hasSamples = true
	if !visible {
		return
	}

	for it < itEnd {
		next := it + 1
		if next != itEnd {
			nextTime := vec[it].Time + minVis
			for {
				off, _ := slices.BinarySearchFunc(vec[next:itEnd], nextTime, sampleCmp)
				next += off
				if next == itEnd {
					break
				}
				if vec[next].Time-vec[next-1].Time >= minVis {
					break
				}
				nextTime = vec[next].Time + minVis
			}
		}
		track.sampleDraws = append(track.sampleDraws, SampleDraw{Index: uint32(it), Extra: uint32(next - it - 1)})
		it = next
	}
}

func messageCmp(m *trace.Message, t trace.Timestamp) int { return cmp.Compare(m.Time, t) }

// PreprocessMessages clusters messages that are closer together than can be told apart. A cluster is highlighted if
// it contains the highlighted message.
func (track *ThreadTrack) PreprocessMessages(ctx Context, visible bool) {
	vec := track.thread.Messages
	it, _ := slices.BinarySearchFunc(vec, ctx.Start, messageCmp)
	if it == len(vec) {
		return
	}
	end, _ := slices.BinarySearchFunc(vec[it:], ctx.End+1, messageCmp)
	end += it
	if it == end {
		return
	}

	track.hasMessages = true
	if !visible {
		return
	}

	minVis := ctx.MinVisible()
	hMsg := track.settings.HighlightMessage
	for it < end {
		// Clusters may extend past the window.
		off, _ := slices.BinarySearchFunc(vec[it:], vec[it].Time+minVis+1, messageCmp)
		next := it + off
		num := next - it
		var highlight bool
		if num == 1 {
			highlight = hMsg == vec[it]
		} else if hMsg != nil && hMsg.Thread == track.thread.ID {
			highlight = vec[it].Time <= hMsg.Time && (next == len(vec) || vec[next].Time > hMsg.Time)
		}
		track.msgDraws = append(track.msgDraws, MessageDraw{Message: vec[it], Highlight: highlight, Count: uint32(num)})
		it = next
	}
}

// DrawFinished clears the frame's draw lists.
func (track *ThreadTrack) DrawFinished() bool {
	clear(track.draws)
	track.draws = track.draws[:0]
	track.ctxDraws = track.ctxDraws[:0]
	track.sampleDraws = track.sampleDraws[:0]
	clear(track.msgDraws)
	track.msgDraws = track.msgDraws[:0]
	return false
}

package timeline

import (
	"context"

	"honnef.co/go/zonetrack/mysync"
	"honnef.co/go/zonetrack/trace"
)

// Track is a horizontal band of the timeline.
type Track interface {
	Label() string
	// Preprocess queues the track's work for a frame.
	Preprocess(ctx Context, td *TaskDispatch, visible bool)
	// Depth returns the number of zone levels the track needs space for. Only valid after a frame.
	Depth() int
	// DrawFinished ends a frame and reports whether the track wants another one.
	DrawFinished() bool
}

var (
	_ Track = (*CoreTrack)(nil)
	_ Track = (*ThreadTrack)(nil)
)

// Timeline owns one track per CPU core and per thread. It reads the store while holding its read lock, so producers
// can keep appending data between frames.
type Timeline struct {
	Settings ViewSettings
	// Maximum number of concurrent preprocessing tasks. Zero uses GOMAXPROCS.
	Workers int

	rlock   func() (trace.Store, func())
	cores   []*CoreTrack
	threads []*ThreadTrack
}

func NewTimeline[S trace.Store](src *mysync.Mutex[S], settings ViewSettings) *Timeline {
	return &Timeline{
		Settings: settings,
		rlock: func() (trace.Store, func()) {
			store, unlock := src.RLock()
			return store, unlock.RUnlock
		},
	}
}

func (tl *Timeline) Cores() []*CoreTrack { return tl.cores }

func (tl *Timeline) Threads() []*ThreadTrack { return tl.threads }

// Tracks returns all tracks, cores first.
func (tl *Timeline) Tracks() []Track {
	out := make([]Track, 0, len(tl.cores)+len(tl.threads))
	for _, ct := range tl.cores {
		out = append(out, ct)
	}
	for _, tt := range tl.threads {
		out = append(out, tt)
	}
	return out
}

// syncTracks adds tracks for cores and threads that appeared since the last frame.
func (tl *Timeline) syncTracks(store trace.Store) {
	for cpu := len(tl.cores); cpu < store.CPUCount(); cpu++ {
		tl.cores = append(tl.cores, NewCoreTrack(store, cpu, &tl.Settings))
	}

	threads := store.Threads()
	if len(threads) == len(tl.threads) {
		return
	}
	compressed := make(map[uint64]uint16, store.CompressedThreadCount())
	for c := 0; c < store.CompressedThreadCount(); c++ {
		compressed[store.DecompressThread(uint16(c))] = uint16(c)
	}
	for _, th := range threads[len(tl.threads):] {
		tl.threads = append(tl.threads, NewThreadTrack(store, th, compressed[th.ID], &tl.Settings))
	}
}

// Frame preprocesses all tracks for view. visible reports whether a track is on screen; a nil function treats all
// tracks as visible. The draw lists are valid until FrameFinished is called.
func (tl *Timeline) Frame(ctx context.Context, view Context, visible func(Track) bool) error {
	store, unlock := tl.rlock()
	defer unlock()

	tl.syncTracks(store)
	td := NewTaskDispatch(ctx, tl.Workers)
	for _, track := range tl.Tracks() {
		track.Preprocess(view, td, visible == nil || visible(track))
	}
	return td.Wait()
}

// FrameFinished clears all draw lists and reports whether another frame should be scheduled, because some track
// hasn't caught up with the data yet.
func (tl *Timeline) FrameFinished() bool {
	more := false
	for _, track := range tl.Tracks() {
		if track.DrawFinished() {
			more = true
		}
	}
	return more
}

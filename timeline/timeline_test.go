package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"honnef.co/go/zonetrack/mysync"
	"honnef.co/go/zonetrack/trace"
)

func TestTimelineFrame(t *testing.T) {
	tr := trace.NewTrace()
	tr.AddThread(1, "main")
	addZones(tr, 1, span{10, 90})
	addSwitches(tr, 0, record{1, 0, 100})
	mu := mysync.NewMutex(tr)

	tl := NewTimeline(mu, DefaultViewSettings())
	if err := tl.Frame(context.Background(), viewFor(0, 100, 10), nil); err != nil {
		t.Fatal(err)
	}
	if len(tl.Cores()) != 1 || len(tl.Threads()) != 1 {
		t.Fatalf("got %d core and %d thread tracks, want 1 and 1", len(tl.Cores()), len(tl.Threads()))
	}
	diffDraws(t, tl.Cores()[0].Draws(), []Draw{
		{Type: DrawZone, SubType: SubTypeCore, Start: 10, End: 90, Thread: 1},
	})
	diffDraws(t, tl.Threads()[0].Draws(), []Draw{
		{Type: DrawZone, Start: 10, End: 90, Thread: 1},
	})
	if tl.FrameFinished() {
		t.Error("FrameFinished requested another frame for live data that has been indexed")
	}
	if len(tl.Cores()[0].Draws()) != 0 {
		t.Error("FrameFinished didn't clear draw lists")
	}

	mu.Do(func(tr *trace.Trace) {
		tr.AddThread(2, "worker")
		tr.StartContextSwitch(1, 2, 100)
	})
	if err := tl.Frame(context.Background(), viewFor(0, 100, 10), nil); err != nil {
		t.Fatal(err)
	}
	if len(tl.Cores()) != 2 || len(tl.Threads()) != 2 {
		t.Errorf("got %d core and %d thread tracks after new data, want 2 and 2", len(tl.Cores()), len(tl.Threads()))
	}
	tl.FrameFinished()
}

func TestTimelineVisibility(t *testing.T) {
	tr := trace.NewTrace()
	tr.AddThread(1, "main")
	addZones(tr, 1, span{10, 90})
	addSwitches(tr, 0, record{1, 0, 100})

	tl := NewTimeline(mysync.NewMutex(tr), DefaultViewSettings())
	onlyThreads := func(track Track) bool {
		_, ok := track.(*ThreadTrack)
		return ok
	}
	if err := tl.Frame(context.Background(), viewFor(0, 100, 10), onlyThreads); err != nil {
		t.Fatal(err)
	}
	if len(tl.Cores()[0].Draws()) != 0 {
		t.Error("invisible core track emitted draws")
	}
	if len(tl.Threads()[0].Draws()) != 1 {
		t.Error("visible thread track emitted no draws")
	}
}

func TestTimelineCanceled(t *testing.T) {
	tr := trace.NewTrace()
	tr.AddThread(1, "main")
	addZones(tr, 1, span{10, 90})

	tl := NewTimeline(mysync.NewMutex(tr), DefaultViewSettings())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tl.Frame(ctx, viewFor(0, 100, 10), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got error %v, want context.Canceled", err)
	}
}

func TestTimelineConcurrentProducer(t *testing.T) {
	tr := trace.NewTrace()
	tr.AddThread(1, "main")
	mu := mysync.NewMutex(tr)
	tl := NewTimeline(mu, DefaultViewSettings())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			ts := trace.Timestamp(i * 100)
			mu.Do(func(tr *trace.Trace) {
				tr.StartContextSwitch(0, 1, ts)
				tr.BeginZone(1, ts+10)
				tr.EndZone(1, ts+20)
				tr.EndContextSwitch(0, ts+100)
			})
		}
	}()
	for i := 0; i < 50; i++ {
		if err := tl.Frame(context.Background(), viewFor(0, 20000, 10), nil); err != nil {
			t.Fatal(err)
		}
		tl.FrameFinished()
	}
	wg.Wait()
	mu.Do(func(tr *trace.Trace) { tr.Finish() })

	// Static data keeps requesting frames until the index has caught up.
	for {
		if err := tl.Frame(context.Background(), viewFor(0, 20000, 10), nil); err != nil {
			t.Fatal(err)
		}
		if !tl.FrameFinished() {
			break
		}
	}
	if n := tl.Cores()[0].Buffer().ZoneCount(); n != 200 {
		t.Errorf("indexed %d zones, want 200", n)
	}
}

// Command zonetrack computes timeline draw lists for trace fixtures and prints them.
package main

import (
	"context"
	"flag"
	"fmt"

	"honnef.co/go/zonetrack/mysync"
	"honnef.co/go/zonetrack/timeline"
	"honnef.co/go/zonetrack/trace"
	"honnef.co/go/zonetrack/trace/fixture"

	"gioui.org/unit"
	"github.com/cespare/subcmd"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var local = message.NewPrinter(language.English)

func main() {
	cmds := []subcmd.Command{
		{
			Name:        "draw",
			Description: "print the draw lists of a window of a fixture",
			Do:          drawMain,
		},
		{
			Name:        "band",
			Description: "print the CPU occupancy of a window of a fixture as text",
			Do:          bandMain,
		},
		{
			Name:        "stat",
			Description: "index all CPU cores of a fixture and print statistics",
			Do:          statMain,
		},
	}

	subcmd.Run(cmds)
}

type viewFlags struct {
	start      int64
	end        int64
	width      int
	scale      float64
	coreMode   string
	coreClamp  int
	stackMode  string
	stackClamp int
}

func (vf *viewFlags) register(fs *flag.FlagSet, width int) {
	fs.Int64Var(&vf.start, "start", 0, "start of the window, in nanoseconds")
	fs.Int64Var(&vf.end, "end", -1, "end of the window, in nanoseconds; -1 for the end of the trace")
	fs.IntVar(&vf.width, "width", width, "width of the window, in pixels")
	fs.Float64Var(&vf.scale, "scale", 1, "UI scale")
	fs.StringVar(&vf.coreMode, "core-collapse", "dynamic", "collapse mode of CPU tracks: dynamic, max or limit")
	fs.IntVar(&vf.coreClamp, "core-clamp", 4, "maximum depth of CPU tracks in limit mode")
	fs.StringVar(&vf.stackMode, "stack-collapse", "dynamic", "collapse mode of thread tracks: dynamic, max or limit")
	fs.IntVar(&vf.stackClamp, "stack-clamp", 4, "maximum depth of thread tracks in limit mode")
}

func (vf *viewFlags) settings() (timeline.ViewSettings, error) {
	settings := timeline.DefaultViewSettings()
	coreMode, err := timeline.ParseCollapseMode(vf.coreMode)
	if err != nil {
		return settings, fmt.Errorf("-core-collapse: %w", err)
	}
	stackMode, err := timeline.ParseCollapseMode(vf.stackMode)
	if err != nil {
		return settings, fmt.Errorf("-stack-collapse: %w", err)
	}
	settings.Core = timeline.CollapseSettings{Mode: coreMode, Clamp: vf.coreClamp}
	settings.Stack = timeline.CollapseSettings{Mode: stackMode, Clamp: vf.stackClamp}
	return settings, nil
}

func (vf *viewFlags) view(store trace.Store) timeline.Context {
	end := trace.Timestamp(vf.end)
	if end < 0 {
		end = store.Now()
	}
	start := min(trace.Timestamp(vf.start), end)
	return timeline.NewContext(start, end, vf.width, unit.Metric{PxPerDp: float32(vf.scale), PxPerSp: float32(vf.scale)})
}

func load(path string) (*mysync.Mutex[*trace.Trace], error) {
	tr, err := fixture.Load(path)
	if err != nil {
		return nil, err
	}
	return mysync.NewMutex(tr), nil
}

// settle runs frames until the timeline has caught up with the data, then runs the frame whose draw lists get used.
// The caller must call FrameFinished.
func settle(tl *timeline.Timeline, view timeline.Context) error {
	ctx := context.Background()
	for {
		if err := tl.Frame(ctx, view, nil); err != nil {
			return err
		}
		if !tl.FrameFinished() {
			break
		}
	}
	return tl.Frame(ctx, view, nil)
}

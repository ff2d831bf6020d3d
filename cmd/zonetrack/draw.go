package main

import (
	"errors"
	"flag"
	"log"
	"strings"

	"honnef.co/go/zonetrack/timeline"
	"honnef.co/go/zonetrack/trace"
)

func drawMain(args []string) {
	if err := cmdDraw(args); err != nil {
		log.Fatalf("zonetrack draw: error: %v", err)
	}
}

func cmdDraw(args []string) error {
	var vf viewFlags
	fs := flag.NewFlagSet("zonetrack draw", flag.ExitOnError)
	vf.register(fs, 1000)
	flagThreads := fs.Bool("threads", false, "also print thread tracks")
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) != 1 {
		return errors.New("expected exactly 1 positional arg: fixture filename")
	}
	settings, err := vf.settings()
	if err != nil {
		return err
	}
	mu, err := load(argv[0])
	if err != nil {
		return err
	}

	store, unlock := mu.RLock()
	view := vf.view(store)
	unlock.RUnlock()

	tl := timeline.NewTimeline(mu, settings)
	if err := settle(tl, view); err != nil {
		return err
	}
	defer tl.FrameFinished()

	store, unlock = mu.RLock()
	defer unlock.RUnlock()
	local.Printf("window [%d, %d], %.2f ns/px, zones under %d ns are folded\n",
		view.Start, view.End, view.NsPerPx, view.MinVisible())
	for _, ct := range tl.Cores() {
		local.Printf("%s: depth %d\n", ct.Label(), ct.Depth())
		printDraws(store, ct.Draws())
		cs := store.ContextSwitches(ct.CPU())
		for _, d := range ct.ContextSwitchDraws() {
			rec := cs.AtPtr(int(d.Index))
			local.Printf("  switch %-8s #%d (%d) at %d %s\n", d.Type, d.Index, d.Count, rec.Start, threadName(store, rec.Thread))
		}
	}
	if !*flagThreads {
		return nil
	}
	for _, tt := range tl.Threads() {
		local.Printf("%s: depth %d\n", tt.Label(), tt.Depth())
		printDraws(store, tt.Draws())
		for _, d := range tt.ContextSwitchDraws() {
			if d.Readied {
				local.Printf("  switch %-8s #%d (%d) readied at %d\n", d.Type, d.Index, d.Count, d.Wakeup)
				continue
			}
			local.Printf("  switch %-8s #%d (%d)\n", d.Type, d.Index, d.Count)
		}
		for _, d := range tt.SampleDraws() {
			local.Printf("  sample   #%d at %d (+%d)\n", d.Index, tt.Thread().Samples[d.Index].Time, d.Extra)
		}
		for _, d := range tt.MessageDraws() {
			mark := ""
			if d.Highlight {
				mark = " *"
			}
			local.Printf("  message  %q at %d (%d)%s\n", d.Message.Text, d.Message.Time, d.Count, mark)
		}
	}
	return nil
}

func printDraws(store trace.Store, draws []timeline.Draw) {
	for _, d := range draws {
		indent := strings.Repeat("  ", int(d.Depth)+1)
		switch d.Type {
		case timeline.DrawZone:
			local.Printf("%szone   [%d, %d] %s\n", indent, d.Start, d.End, threadName(store, d.Thread))
		case timeline.DrawFolded:
			local.Printf("%sfolded [%d, %d] %d zones %s\n", indent, d.Start, d.End, d.Count, threadName(store, d.Thread))
		}
	}
}

func threadName(store trace.Store, comprTid uint16) string {
	if comprTid == 0 {
		return "-"
	}
	tid := store.DecompressThread(comprTid)
	if th, ok := store.LocalThread(tid); ok && th.Name != "" {
		return local.Sprintf("%s (%d)", th.Name, tid)
	}
	return local.Sprintf("thread %d", tid)
}

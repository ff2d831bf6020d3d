package main

import (
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"honnef.co/go/zonetrack/timeline"
)

func statMain(args []string) {
	if err := cmdStat(args); err != nil {
		log.Fatalf("zonetrack stat: error: %v", err)
	}
}

func cmdStat(args []string) error {
	var vf viewFlags
	fs := flag.NewFlagSet("zonetrack stat", flag.ExitOnError)
	vf.register(fs, 1000)
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) != 1 {
		return errors.New("expected exactly 1 positional arg: fixture filename")
	}
	return writeStats(os.Stdout, argv[0], &vf)
}

// writeStats indexes a fixture for the window described by vf and writes the statistics of every CPU core to w.
func writeStats(w io.Writer, path string, vf *viewFlags) error {
	settings, err := vf.settings()
	if err != nil {
		return err
	}
	mu, err := load(path)
	if err != nil {
		return err
	}

	store, unlock := mu.RLock()
	view := vf.view(store)
	unlock.RUnlock()

	tl := timeline.NewTimeline(mu, settings)
	t := time.Now()
	if err := settle(tl, view); err != nil {
		return err
	}
	d := time.Since(t)
	defer tl.FrameFinished()

	store, unlock = mu.RLock()
	defer unlock.RUnlock()
	local.Fprintf(w, "%d threads, %d thread IDs, %d CPUs, static: %t, indexed in %s\n",
		len(store.Threads()), store.CompressedThreadCount(), store.CPUCount(), store.IsDataStatic(), d)
	for _, ct := range tl.Cores() {
		st := ct.Stats()
		status := "ok"
		if err := ct.Buffer().Validate(store.ContextSwitches(st.CPU)); err != nil {
			status = err.Error()
		}
		pending := ""
		if st.Pending {
			pending = ", pending"
		}
		local.Fprintf(w, "%s: %d/%d records, %d zones in %d pages (%d bytes), max depth %d, %d draws, %d switch draws%s: %s\n",
			ct.Label(), st.ProcessedCS, st.TotalCS, st.Zones, st.Pages, st.MemoryUsage, st.MaxDepth,
			st.DrawItems, st.ContextSwitchItems, pending, status)
	}
	return nil
}

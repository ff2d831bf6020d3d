package main

import (
	"bytes"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"honnef.co/go/zonetrack/trace/fixture"
)

func TestWriteStats(t *testing.T) {
	f := &fixture.Fixture{
		Threads: []fixture.Thread{{
			ID:   1,
			Name: "main",
			Zones: []fixture.Zone{
				{Start: 0, End: 100, Children: []fixture.Zone{{Start: 10, End: 20}}},
				{Start: 200, End: 300},
			},
		}},
		CPUs: [][]fixture.Switch{{
			{Thread: 1, Start: 0, End: 150},
			{Thread: 1, Start: 150, End: 400},
		}},
		Static: true,
	}
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := fixture.Save(path, f); err != nil {
		t.Fatal(err)
	}

	var vf viewFlags
	vf.register(flag.NewFlagSet("zonetrack stat", flag.ContinueOnError), 1000)
	var buf bytes.Buffer
	if err := writeStats(&buf, path, &vf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"1 threads",
		"CPU 0: 2/2 records, 2 zones in 1 pages",
		"max depth 2, 3 draws, 2 switch draws: ok",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

package fixture

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"honnef.co/go/zonetrack/trace"
)

const sample = `{
	"threads": [
		{
			"id": 10,
			"name": "main",
			"zones": [
				{"start": 0, "end": 100, "children": [{"start": 10, "end": 20}]},
				{"start": 200, "end": -1}
			],
			"samples": [5, 15],
			"messages": [{"time": 50, "text": "hello"}]
		}
	],
	"external": [99],
	"cpus": [
		[{"thread": 10, "start": 0, "end": 150}, {"thread": 99, "start": 150, "end": 300}],
		[{"thread": 10, "start": 160, "end": -1, "wakeup": 155}]
	]
}`

func TestDecodeAndBuild(t *testing.T) {
	f, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := f.Build()
	if err != nil {
		t.Fatal(err)
	}

	th, ok := tr.LocalThread(10)
	if !ok {
		t.Fatal("thread 10 is missing")
	}
	if th.Timeline.Len() != 2 {
		t.Fatalf("got %d top-level zones, want 2", th.Timeline.Len())
	}
	if z := th.Timeline.AtPtr(0); !z.HasChildren() || tr.Children(z).Len() != 1 {
		t.Error("first zone lost its child")
	}
	if z := th.Timeline.AtPtr(1); z.EndValid() {
		t.Error("open zone was closed")
	}
	if len(th.Samples) != 2 || len(th.Messages) != 1 || th.Messages[0].Text != "hello" {
		t.Errorf("got %d samples and %d messages", len(th.Samples), len(th.Messages))
	}
	if _, ok := tr.LocalThread(99); ok {
		t.Error("external thread is local")
	}

	if tr.CPUCount() != 2 {
		t.Fatalf("got %d CPUs, want 2", tr.CPUCount())
	}
	if cs := tr.ContextSwitches(1); cs.Len() != 1 || cs.AtPtr(0).EndValid() {
		t.Error("open context switch on CPU 1 was closed")
	}
	// The thread ran on both cores, in time order.
	if len(th.ContextSwitches) != 2 || th.ContextSwitches[0].CPU != 0 || th.ContextSwitches[1].CPU != 1 {
		t.Errorf("unexpected thread context switches %+v", th.ContextSwitches)
	} else if th.ContextSwitches[0].Wakeup != 0 || th.ContextSwitches[1].Wakeup != 155 {
		t.Errorf("got wakeups %d and %d, want 0 and 155", th.ContextSwitches[0].Wakeup, th.ContextSwitches[1].Wakeup)
	}
	if tr.IsDataStatic() {
		t.Error("trace is static")
	}
}

func TestBuildErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    Fixture
		want error
	}{
		{
			name: "unknown thread",
			f:    Fixture{CPUs: [][]Switch{{{Thread: 5, Start: 0, End: 10}}}},
			want: ErrUnknownThread,
		},
		{
			name: "overlapping switches",
			f: Fixture{
				Threads: []Thread{{ID: 1}},
				CPUs:    [][]Switch{{{Thread: 1, Start: 0, End: 10}, {Thread: 1, Start: 5, End: 20}}},
			},
			want: ErrUnsorted,
		},
		{
			name: "wakeup after start",
			f: Fixture{
				Threads: []Thread{{ID: 1}},
				CPUs:    [][]Switch{{{Thread: 1, Start: 10, End: 20, Wakeup: 15}}},
			},
			want: ErrUnsorted,
		},
		{
			name: "overlapping zones",
			f: Fixture{
				Threads: []Thread{{ID: 1, Zones: []Zone{{Start: 0, End: 10}, {Start: 5, End: 20}}}},
			},
			want: ErrUnsorted,
		},
		{
			name: "child outside of parent",
			f: Fixture{
				Threads: []Thread{{ID: 1, Zones: []Zone{{Start: 0, End: 10, Children: []Zone{{Start: 5, End: 20}}}}}},
			},
			want: ErrUnsorted,
		},
		{
			name: "open zone with siblings",
			f: Fixture{
				Threads: []Thread{{ID: 1, Zones: []Zone{{Start: 0, End: -1}, {Start: 5, End: 20}}}},
			},
			want: ErrUnsorted,
		},
		{
			name: "unsorted samples",
			f:    Fixture{Threads: []Thread{{ID: 1, Samples: []trace.Timestamp{10, 5}}}},
			want: ErrUnsorted,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.f.Build(); !errors.Is(err, tc.want) {
				t.Errorf("got error %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeRejectsUnknownMembers(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"threads": [], "cpu": []}`)); err == nil {
		t.Error("expected error for unknown member")
	}
}

func TestSaveLoad(t *testing.T) {
	f, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	f.Static = true
	for _, name := range []string{"trace.json", "trace.json.sz"} {
		path := filepath.Join(t.TempDir(), name)
		if err := Save(path, f); err != nil {
			t.Fatal(err)
		}
		tr, err := Load(path)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		if !tr.IsDataStatic() {
			t.Errorf("%s: trace isn't static", name)
		}
		if th, ok := tr.LocalThread(10); !ok || th.Timeline.Len() != 2 {
			t.Errorf("%s: thread 10 didn't survive", name)
		}
	}
}

// Package fixture loads traces from JSON documents, for tests and the command line tool. Files ending in .sz are
// snappy-compressed.
package fixture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"honnef.co/go/zonetrack/trace"

	"github.com/go-json-experiment/json"
	"github.com/golang/snappy"
)

var (
	ErrUnknownThread = errors.New("unknown thread")
	ErrUnsorted      = errors.New("data isn't sorted")
)

type Fixture struct {
	Threads []Thread `json:"threads"`
	// IDs of threads that context switches may refer to but that weren't traced
	External []uint64 `json:"external,omitempty"`
	// Context switch records, per CPU core
	CPUs [][]Switch `json:"cpus"`
	// Static fixtures describe finished captures.
	Static bool `json:"static,omitzero"`
}

type Thread struct {
	ID       uint64            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Zones    []Zone            `json:"zones,omitempty"`
	Samples  []trace.Timestamp `json:"samples,omitempty"`
	Messages []Message         `json:"messages,omitempty"`
}

// Zone is a zone and its children. An End of -1 marks an open zone.
type Zone struct {
	Start    trace.Timestamp `json:"start"`
	End      trace.Timestamp `json:"end"`
	Children []Zone          `json:"children,omitempty"`
}

type Message struct {
	Time trace.Timestamp `json:"time"`
	Text string          `json:"text"`
}

// Switch is a context switch record. Thread 0 means that the core was idle. An End of -1 marks the record that is
// still in effect. A zero Wakeup means that the thread was made runnable at Start.
type Switch struct {
	Thread uint64          `json:"thread"`
	Start  trace.Timestamp `json:"start"`
	End    trace.Timestamp `json:"end"`
	Wakeup trace.Timestamp `json:"wakeup,omitzero"`
}

func isCompressed(path string) bool { return strings.HasSuffix(path, ".sz") }

// Decode reads a fixture. Unknown members are rejected.
func Decode(r io.Reader) (*Fixture, error) {
	var f Fixture
	if err := json.UnmarshalRead(r, &f, json.RejectUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("couldn't decode fixture: %w", err)
	}
	return &f, nil
}

func Encode(w io.Writer, f *Fixture) error {
	return json.MarshalWrite(w, f)
}

// Open reads a fixture from a file.
func Open(path string) (*Fixture, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	var r io.Reader = fd
	if isCompressed(path) {
		r = snappy.NewReader(fd)
	}
	f, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Load reads a fixture from a file and builds a trace from it.
func Load(path string) (*trace.Trace, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	tr, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

// Save writes a fixture to a file.
func Save(path string, f *Fixture) (err error) {
	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fd.Close(); err == nil {
			err = cerr
		}
	}()
	if !isCompressed(path) {
		return Encode(fd, f)
	}
	w := snappy.NewBufferedWriter(fd)
	if err := Encode(w, f); err != nil {
		return err
	}
	return w.Close()
}

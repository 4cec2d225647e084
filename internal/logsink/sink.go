// Package logsink is the append-only stream of device-tagged log lines that
// drivers, workers and the foreman produce into.
package logsink

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// Terminal and batch markers. A human scanning the log finds failures by them.
const (
	SuccessMarker    = "+ + + + + + Deployment succeeded"
	FailureMarker    = "! ! ! ! ! ! Deployment failed"
	BatchStartMarker = "* * * * * * * * * * * * Deployment started"
	BatchEndMarker   = ". . . . . . . . . . . . Deployment finished"
)

// Entry is one line of the stream.
type Entry struct {
	Time   time.Time
	Device string // empty for batch level lines
	Text   string
}

// Handler consumes entries. Handlers are invoked under the sink lock and must
// not call back into the sink.
type Handler interface {
	Handle(Entry)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Entry)

func (f HandlerFunc) Handle(e Entry) { f(e) }

// Sink fans entries out to its handlers. It is safe for concurrent use and
// delivers each entry whole, so lines from different devices never interleave
// partially.
type Sink struct {
	mu       sync.Mutex
	handlers []Handler
	now      func() time.Time
}

// New creates a sink with the given handlers.
func New(handlers ...Handler) *Sink {
	return &Sink{handlers: handlers, now: time.Now}
}

// Add attaches another handler.
func (s *Sink) Add(h Handler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Emit appends one line. Multi-line text is split so every entry is one line.
func (s *Sink) Emit(device, text string) {
	text = strings.TrimRight(text, "\r\n")
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, line := range strings.Split(text, "\n") {
		e := Entry{Time: now, Device: device, Text: strings.TrimRight(line, "\r")}
		for _, h := range s.handlers {
			h.Handle(e)
		}
	}
}

// Device returns a logger that tags every line with name.
func (s *Sink) Device(name string) *Logger {
	return &Logger{sink: s, device: name}
}

// Console prints entries with a cyan device prefix.
func Console(w io.Writer) Handler {
	prefix := pterm.NewStyle(pterm.FgCyan, pterm.Bold)
	return HandlerFunc(func(e Entry) {
		if e.Device == "" {
			fmt.Fprintln(w, e.Text)
			return
		}
		fmt.Fprintln(w, prefix.Sprintf("[%s] ", e.Device)+e.Text)
	})
}

// Slog forwards entries as info records with a device attribute.
func Slog(l *slog.Logger) Handler {
	return HandlerFunc(func(e Entry) {
		if e.Device == "" {
			l.Info(e.Text)
			return
		}
		l.Info(e.Text, "device", e.Device)
	})
}

// File writes plain "time device: text" lines, suitable for a log file.
func File(w io.Writer) Handler {
	return HandlerFunc(func(e Entry) {
		ts := e.Time.Format(time.DateTime)
		if e.Device == "" {
			fmt.Fprintf(w, "%s %s\n", ts, e.Text)
			return
		}
		fmt.Fprintf(w, "%s %s: %s\n", ts, e.Device, e.Text)
	})
}

// Recorder keeps every entry in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Handle(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lines returns the recorded text for one device, in order.
func (r *Recorder) Lines(device string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Device == device {
			out = append(out, e.Text)
		}
	}
	return out
}

package logsink

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Logger writes lines for a single device. A device attempt is driven by one
// goroutine, but a forcibly stopped attempt is marked by the foreman while
// that goroutine may still be running, so the logger is guarded.
type Logger struct {
	sink   *Sink
	device string

	mu     sync.Mutex
	lines  []string
	marked bool
}

// Name returns the device name.
func (l *Logger) Name() string {
	return l.device
}

// Println logs one line.
func (l *Logger) Println(a ...any) {
	l.emit(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
}

// Printf logs a formatted line.
func (l *Logger) Printf(format string, a ...any) {
	l.emit(fmt.Sprintf(format, a...))
}

func (l *Logger) emit(text string) {
	l.mu.Lock()
	for _, line := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		l.lines = append(l.lines, strings.TrimRight(line, "\r"))
	}
	l.mu.Unlock()
	l.sink.Emit(l.device, text)
}

// Succeeded emits the success marker unless a marker was already emitted.
// It reports whether the marker was written.
func (l *Logger) Succeeded() bool {
	return l.mark(SuccessMarker)
}

// Failed emits the failure marker unless a marker was already emitted.
func (l *Logger) Failed() bool {
	return l.mark(FailureMarker)
}

func (l *Logger) mark(marker string) bool {
	l.mu.Lock()
	if l.marked {
		l.mu.Unlock()
		return false
	}
	l.marked = true
	l.lines = append(l.lines, marker)
	l.mu.Unlock()
	l.sink.Emit(l.device, marker)
	return true
}

// Marked reports whether a terminal marker was emitted.
func (l *Logger) Marked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.marked
}

// Lines returns a copy of every line logged so far.
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Writer returns a line callback for streaming command output.
func (l *Logger) Writer() func(string) {
	return func(line string) { l.emit(line) }
}

type loggerKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored by NewContext, if any.
func FromContext(ctx context.Context) (*Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*Logger)
	return l, ok
}

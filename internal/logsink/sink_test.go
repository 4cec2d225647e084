package logsink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestLogger_MarkerOnce(t *testing.T) {
	rec := &Recorder{}
	s := New(rec)
	l := s.Device("dev1")

	l.Println("connecting")
	if !l.Failed() {
		t.Fatal("first marker should be written")
	}
	if l.Succeeded() || l.Failed() {
		t.Error("second marker must be suppressed")
	}

	lines := rec.Lines("dev1")
	want := []string{"connecting", FailureMarker}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if got := l.Lines(); len(got) != 2 {
		t.Errorf("logger kept %d lines, want 2", len(got))
	}
}

func TestSink_MultilineSplit(t *testing.T) {
	rec := &Recorder{}
	s := New(rec)
	s.Device("a").Printf("one\ntwo\r\n")

	got := rec.Lines("a")
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("got %q", got)
	}
}

func TestSink_ConcurrentWholeLines(t *testing.T) {
	var buf bytes.Buffer
	s := New(File(&buf))

	var wg sync.WaitGroup
	for d := 0; d < 8; d++ {
		wg.Add(1)
		go func(d int) {
			defer wg.Done()
			l := s.Device(fmt.Sprintf("dev%d", d))
			for i := 0; i < 50; i++ {
				l.Printf("line %d of dev%d", i, d)
			}
		}(d)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 400 {
		t.Fatalf("got %d lines, want 400", len(lines))
	}
	for _, line := range lines {
		// "<date> <time> devN: line i of devN"
		fields := strings.Fields(line)
		if len(fields) != 7 {
			t.Fatalf("torn line: %q", line)
		}
		if strings.TrimSuffix(fields[2], ":") != fields[6] {
			t.Errorf("line tagged %s carries text of %s", fields[2], fields[6])
		}
	}
}

func TestHandlers(t *testing.T) {
	t.Run("Console", func(t *testing.T) {
		var buf bytes.Buffer
		New(Console(&buf)).Device("tv").Println("hello")
		if !strings.Contains(buf.String(), "[tv]") || !strings.Contains(buf.String(), "hello") {
			t.Errorf("unexpected console output %q", buf.String())
		}
	})

	t.Run("Slog", func(t *testing.T) {
		var buf bytes.Buffer
		l := slog.New(slog.NewTextHandler(&buf, nil))
		New(Slog(l)).Device("tv").Println("hello")
		if !strings.Contains(buf.String(), "device=tv") {
			t.Errorf("missing device attribute: %q", buf.String())
		}
	})

	t.Run("BatchLine", func(t *testing.T) {
		var buf bytes.Buffer
		New(Console(&buf)).Emit("", BatchStartMarker)
		if strings.TrimSpace(buf.String()) != BatchStartMarker {
			t.Errorf("got %q", buf.String())
		}
	})
}

func TestLoggerContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context carries a logger")
	}
	l := New().Device("tv1")
	got, ok := FromContext(NewContext(context.Background(), l))
	if !ok || got != l {
		t.Errorf("FromContext = %v, %v", got, ok)
	}
}

package repl

import (
	"bytes"
	"errors"
	"testing"

	"echo-render/internal/streamwindow"
)

func TestScrollbackWritesStableRowsOnly(t *testing.T) {
	var buf bytes.Buffer
	sb := NewScrollback(&buf)
	tr := NewTranscript(TranscriptOptions{
		Window:      streamwindow.Config{LiveLimit: 4, FlushThreshold: 3, FlushBatchSize: 2},
		HistorySize: 2,
		OnStable:    sb.AppendRows,
	})

	tr.Append([]string{"one", "two", "three"})
	if err := sb.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := buf.String(); got != "one\ntwo\n" {
		t.Fatalf("after auto flush got %q", got)
	}

	tr.Finish()
	if err := sb.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := buf.String(); got != "one\ntwo\nthree\n" {
		t.Fatalf("after finish got %q", got)
	}
	if sb.Written() != 3 {
		t.Fatalf("Written()=%d want 3", sb.Written())
	}
	// history keeps only the newest two rows, the writer keeps everything
	if tr.Len() != 2 {
		t.Fatalf("Len()=%d want 2", tr.Len())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestScrollbackReportsWriteError(t *testing.T) {
	sb := NewScrollback(failingWriter{})
	sb.AppendRows([]Row{{Text: "x"}})
	if err := sb.Flush(); err == nil {
		t.Fatalf("expected write error")
	}
}

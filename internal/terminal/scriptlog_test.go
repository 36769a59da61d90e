package terminal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestScriptLogFormat(t *testing.T) {
	dir := t.TempDir()

	l, err := OpenScriptLog(dir, "cafebabe")
	if err != nil {
		t.Fatalf("failed to open script log: %v", err)
	}

	chunks := [][]byte{
		[]byte("$ printf hi\r\n"),
		[]byte("hi"),
		[]byte("\r\n$ "),
	}
	for _, c := range chunks {
		l.Write(c)
	}
	l.Close()
	l.Close() // idempotent

	rawPath := l.Path()
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		t.Fatalf("failed to read typescript file: %v", err)
	}

	var want []byte
	for _, c := range chunks {
		want = append(want, c...)
	}
	if string(raw) != string(want) {
		t.Fatalf("typescript file is not a byte-exact concatenation: got %q want %q", raw, want)
	}

	// Every chunk has a timing row, and the byte counts sum to the raw size.
	tf, err := os.Open(rawPath + ".timing")
	if err != nil {
		t.Fatalf("failed to open timing file: %v", err)
	}
	defer tf.Close()

	total := 0
	lines := 0
	scanner := bufio.NewScanner(tf)
	for scanner.Scan() {
		var delta float64
		var n int
		if _, err := fmt.Sscanf(scanner.Text(), "%f %d", &delta, &n); err != nil {
			t.Fatalf("malformed timing row %q: %v", scanner.Text(), err)
		}
		if delta < 0 {
			t.Fatalf("negative timing delta in %q", scanner.Text())
		}
		total += n
		lines++
	}
	if lines != len(chunks) {
		t.Fatalf("expected %d timing rows, got %d", len(chunks), lines)
	}
	if total != len(raw) {
		t.Fatalf("timing rows sum to %d bytes, typescript file has %d", total, len(raw))
	}
}

func TestScriptLogPathLayout(t *testing.T) {
	dir := t.TempDir()

	l, err := OpenScriptLog(dir, "deadbeef01")
	if err != nil {
		t.Fatalf("failed to open script log: %v", err)
	}
	defer l.Close()

	now := time.Now()
	wantDay := filepath.Join(dir, now.Format("2006"), now.Format("01"), now.Format("02"))
	if filepath.Dir(l.Path()) != wantDay {
		t.Fatalf("expected log under %s, got %s", wantDay, l.Path())
	}
	base := filepath.Base(l.Path())
	if !strings.HasPrefix(base, "typescript-deadbeef01-") {
		t.Fatalf("unexpected typescript file name %q", base)
	}
}

func TestScriptLogNilReceiver(t *testing.T) {
	var l *ScriptLogger
	l.Write([]byte("dropped"))
	l.Close()
	if l.Path() != "" {
		t.Fatal("nil logger should have no path")
	}
}

func TestScriptLogDisabledAfterWriteError(t *testing.T) {
	dir := t.TempDir()
	l, err := OpenScriptLog(dir, "0badf00d")
	if err != nil {
		t.Fatalf("failed to open script log: %v", err)
	}

	// Force a write error by closing the raw file behind the logger's back.
	l.raw.Close()
	l.Write([]byte("first write fails"))
	if !l.disabled {
		t.Fatal("logger should disable itself after a write error")
	}
	l.Write([]byte("silently ignored"))
	l.Close()
}

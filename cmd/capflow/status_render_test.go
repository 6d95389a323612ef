package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Stalled", statusWarn, "2", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Stalled:", "[WARN] 2")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Completed", statusOK, "1", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green line, got %q", got)
	}
}

func TestCountStatus(t *testing.T) {
	if got := countStatus(0, statusWarn); got != statusOK {
		t.Fatalf("countStatus(0) = %v, want OK", got)
	}
	if got := countStatus(3, statusWarn); got != statusWarn {
		t.Fatalf("countStatus(3) = %v, want WARN", got)
	}
}

func TestShouldColorizeBuffer(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

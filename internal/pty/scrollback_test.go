package pty

import (
	"strings"
	"testing"
)

func TestScrollbackAppendJoinsLines(t *testing.T) {
	sb := newScrollback(100, 1<<20)
	sb.Append([]byte("hello\nworld"))
	if got := sb.Snapshot(); got != "hello\nworld" {
		t.Fatalf("unexpected snapshot: %q", got)
	}
}

func TestScrollbackHandlesSplitMultibyteRune(t *testing.T) {
	sb := newScrollback(100, 1<<20)
	euro := "€" // 3-byte UTF-8 sequence: 0xE2 0x82 0xAC
	full := []byte(euro)
	sb.Append(full[:1])
	sb.Append(full[1:])
	if got := sb.Snapshot(); got != euro {
		t.Fatalf("expected split rune to reassemble, got %q", got)
	}
}

func TestScrollbackFinalizeReplacesResidual(t *testing.T) {
	sb := newScrollback(100, 1<<20)
	euro := []byte("€")
	sb.Append(euro[:1]) // only the lead byte, never completed
	sb.Finalize()
	got := sb.Snapshot()
	if !strings.ContainsRune(got, '�') {
		t.Fatalf("expected U+FFFD replacement for residual incomplete bytes, got %q", got)
	}
}

func TestScrollbackEvictsOldestLinesOverCap(t *testing.T) {
	sb := newScrollback(3, 1<<20)
	for i := 0; i < 10; i++ {
		sb.Append([]byte("line\n"))
	}
	lines := strings.Split(strings.TrimRight(sb.Snapshot(), "\n"), "\n")
	if len(lines) > 3 {
		t.Fatalf("expected at most 3 retained lines, got %d", len(lines))
	}
}

func TestScrollbackSnapshotAlwaysValidUTF8(t *testing.T) {
	sb := newScrollback(100, 1<<20)
	sb.Append([]byte{0xFF, 0xFE}) // invalid bytes
	sb.Append([]byte("ok\n"))
	got := sb.Snapshot()
	if !strings.ContainsRune(got, '�') {
		t.Fatalf("expected invalid bytes replaced with U+FFFD, got %q", got)
	}
	if !strings.HasSuffix(strings.TrimRight(got, "\n"), "ok") {
		t.Fatalf("expected trailing valid text preserved, got %q", got)
	}
}

// Package pty implements a PTY-backed command executor: sessions multiplex
// a real pseudo-terminal per command, with UTF-8-safe, line-and-byte-bounded
// scrollback, generalizing the teacher's plain os/exec BashTool.
//
// Grounded on the teacher's internal/tool/bash.go for the overall shape
// (permission flow, background-task registration, timeout handling) and
// github.com/creack/pty (used by the other_examples/manifests pack entries
// dagu-org-dagu, armatrix-claude-agent-sdk-go, odvcencio-buckley,
// liteclaw-liteclaw, cloudshipai-station) for the actual PTY spawn.
package pty

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// DefaultMaxLines and DefaultMaxBytes bound a session's scrollback ring
// buffer; the oldest content is evicted first once either cap is exceeded.
const (
	DefaultMaxLines = 2000
	DefaultMaxBytes = 1 << 20 // 1 MiB
)

// scrollback is a UTF-8-safe, line-and-byte-bounded append-only buffer with
// eviction from the front. Appends may include incomplete trailing UTF-8
// sequences (e.g. a multi-byte rune split across two PTY reads); those are
// buffered until the remaining bytes arrive, or replaced with U+FFFD at
// Close/Finalize if the stream ends mid-sequence.
type scrollback struct {
	mu       sync.Mutex
	maxLines int
	maxBytes int
	lines    []string // completed lines, oldest first
	current  strings.Builder
	pending  []byte // buffered incomplete trailing UTF-8 bytes
	byteLen  int    // total bytes currently retained across lines+current
}

func newScrollback(maxLines, maxBytes int) *scrollback {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &scrollback{maxLines: maxLines, maxBytes: maxBytes}
}

// Append decodes chunk as UTF-8-safely as possible: the longest valid
// prefix (combined with any previously pending incomplete bytes) is
// flushed into the buffer immediately; any new incomplete trailing
// sequence is retained in pending for the next Append.
func (s *scrollback) Append(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := append(s.pending, chunk...)
	s.pending = nil

	valid, rest := splitValidUTF8Prefix(data)
	s.pending = rest
	s.writeText(string(valid))
}

// Finalize flushes any residual incomplete bytes, replacing them with
// U+FFFD, and must be called once no more Append calls will occur (e.g.
// on process exit / EOF).
func (s *scrollback) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		s.writeText(strings.Repeat(string(utf8.RuneError), 1))
		s.pending = nil
	}
}

// writeText appends decoded text to the current line, splitting on '\n'
// into completed lines and enforcing the line/byte caps by evicting from
// the front. Caller must hold s.mu.
func (s *scrollback) writeText(text string) {
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			s.current.WriteString(text)
			s.byteLen += len(text)
			break
		}
		s.current.WriteString(text[:idx])
		line := s.current.String()
		s.byteLen += len(text[:idx]) + 1 // +1 for the newline itself
		s.lines = append(s.lines, line)
		s.current.Reset()
		text = text[idx+1:]
		s.evictLocked()
	}
	s.evictLocked()
}

func (s *scrollback) evictLocked() {
	for len(s.lines) > s.maxLines && len(s.lines) > 0 {
		evicted := s.lines[0]
		s.lines = s.lines[1:]
		s.byteLen -= len(evicted) + 1
	}
	for s.byteLen > s.maxBytes && len(s.lines) > 0 {
		evicted := s.lines[0]
		s.lines = s.lines[1:]
		s.byteLen -= len(evicted) + 1
	}
}

// Snapshot returns the full current buffer — always valid UTF-8 — as a
// single string: completed lines joined by '\n', plus any in-progress
// partial line.
func (s *scrollback) Snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return s.current.String()
	}
	joined := strings.Join(s.lines, "\n")
	if s.current.Len() > 0 {
		joined += "\n" + s.current.String()
	}
	return joined
}

// splitValidUTF8Prefix returns the longest prefix of data that is valid
// UTF-8 (with invalid interior sequences replaced by U+FFFD, one
// replacement per maximal invalid run) and the trailing bytes that form an
// incomplete-but-possibly-valid-later rune, to be retried once more bytes
// arrive.
func splitValidUTF8Prefix(data []byte) (valid []byte, pendingTail []byte) {
	var out []byte
	i := 0
	for i < len(data) {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			if i+utf8.UTFMax >= len(data) && !utf8.FullRune(data[i:]) {
				// Not enough bytes yet to know if this is invalid or just
				// truncated — hold it back for the next chunk.
				break
			}
			out = append(out, []byte(string(utf8.RuneError))...)
			i++
			continue
		}
		out = append(out, data[i:i+size]...)
		i += size
	}
	return out, append([]byte(nil), data[i:]...)
}

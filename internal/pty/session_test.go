package pty

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStripANSIRemovesEscapeSequences(t *testing.T) {
	colored := "\x1b[31mred text\x1b[0m"
	if got := StripANSI(colored); got != "red text" {
		t.Fatalf("expected ANSI stripped, got %q", got)
	}
}

func TestShortCircuitEligibleMatchingCommand(t *testing.T) {
	if !ShortCircuitEligible(`ls -la`, `ls -la`) {
		t.Fatalf("expected identical commands to be short-circuit eligible")
	}
}

func TestShortCircuitEligibleTrimsMatchingQuotes(t *testing.T) {
	if !ShortCircuitEligible(`"git status"`, `git status`) {
		t.Fatalf("expected quoted raw input to match unquoted command")
	}
}

func TestShortCircuitRejectsShellOperators(t *testing.T) {
	if ShortCircuitEligible(`ls | grep foo`, `ls | grep foo`) {
		t.Fatalf("expected command with shell operators to be rejected")
	}
}

func TestShortCircuitRejectsMismatchedCommands(t *testing.T) {
	if ShortCircuitEligible(`ls -la`, `rm -rf /`) {
		t.Fatalf("expected mismatched commands to be rejected")
	}
}

func TestDisplayWidthCountsWideRunes(t *testing.T) {
	if DisplayWidth("ab") != 2 {
		t.Fatalf("expected ascii width 2")
	}
	if DisplayWidth("") != 0 {
		t.Fatalf("expected empty width 0")
	}
	if DisplayWidth("中文") != 4 {
		t.Fatalf("expected CJK width 4")
	}
}

func TestManagerRunEchoCommand(t *testing.T) {
	mgr := NewManager(4, nil)
	result, err := mgr.Run(context.Background(), CreateOptions{
		Command:    "echo hello",
		WorkingDir: ".",
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.IsExited || result.ExitCode != 0 {
		t.Fatalf("expected clean exit, got %+v", result)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Fatalf("expected output to contain hello, got %q", result.Output)
	}
}

func TestManagerRunCommandNotFound(t *testing.T) {
	mgr := NewManager(4, nil)
	result, err := mgr.Run(context.Background(), CreateOptions{
		Command:    "this_cmd_doesnt_exist_xyz",
		WorkingDir: ".",
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.IsExited || result.ExitCode == 0 {
		t.Fatalf("expected non-zero exit for missing command, got %+v", result)
	}
}

// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"strings"
	"testing"
)

func TestFormatContext_Empty(t *testing.T) {
	if got := FormatContext(Context{}); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestFormatContext_SummaryOnly(t *testing.T) {
	got := FormatContext(Context{Summary: "user monitors line 1"})
	if got != "Summary: user monitors line 1" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestFormatContext_RecentTurns(t *testing.T) {
	got := FormatContext(Context{
		Summary: "s",
		Recent: []Message{
			{Role: "user", Content: "how is ST001?"},
			{Role: "assistant", Content: "running at 92% efficiency"},
		},
	})

	if !strings.HasPrefix(got, "Summary: s\nRecent turns:\n") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.Contains(got, "- user: how is ST001?") {
		t.Errorf("missing user turn: %q", got)
	}
	if !strings.Contains(got, "- assistant: running at 92% efficiency") {
		t.Errorf("missing assistant turn: %q", got)
	}
}

func TestFormatContext_TrimsLongTurns(t *testing.T) {
	long := strings.Repeat("x", 10000)
	got := FormatContext(Context{
		Recent: []Message{{Role: "assistant", Content: long}},
	})

	if !strings.Contains(got, "[trimmed") {
		t.Errorf("expected trim marker in %q", got[:200])
	}
	if len(got) > 5000 {
		t.Errorf("trimmed output still too long: %d chars", len(got))
	}
}

func TestTrimMiddle_HeadTailSplit(t *testing.T) {
	text := strings.Repeat("a", 500) + strings.Repeat("z", 500)
	got := trimMiddle(text, 100)

	if !strings.HasPrefix(got, strings.Repeat("a", 60)) {
		t.Errorf("head not preserved: %q", got[:80])
	}
	if !strings.HasSuffix(got, strings.Repeat("z", 40)) {
		t.Errorf("tail not preserved: %q", got[len(got)-50:])
	}
	if !strings.Contains(got, "[trimmed 900 chars]") {
		t.Errorf("marker missing or wrong: %q", got)
	}
}

func TestTrimMiddle_ShortTextUntouched(t *testing.T) {
	if got := trimMiddle("short", 400); got != "short" {
		t.Errorf("short text should pass through, got %q", got)
	}
}

func TestFormatContext_PerTurnBudgetScales(t *testing.T) {
	// With two turns the budget is 2000 chars each; a 1500-char turn
	// must survive untouched.
	medium := strings.Repeat("m", 1500)
	got := FormatContext(Context{
		Recent: []Message{
			{Role: "user", Content: medium},
			{Role: "assistant", Content: "ok"},
		},
	})
	if strings.Contains(got, "[trimmed") {
		t.Error("1500-char turn should fit in a 2000-char budget")
	}

	// With twenty turns the floor of 400 applies and the same turn is
	// trimmed.
	recent := make([]Message, 20)
	for i := range recent {
		recent[i] = Message{Role: "user", Content: medium}
	}
	got = FormatContext(Context{Recent: recent})
	if !strings.Contains(got, "[trimmed") {
		t.Error("long turns should be trimmed at the 400-char floor")
	}
}

// Copyright (C) 2025 PlantPulse Robotics (eng@plantpulse.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"fmt"
	"strings"
)

const (
	// contextCharBudget is the total character budget spread across
	// recent turns when formatting memory context.
	contextCharBudget = 4000

	// minTurnChars is the per-turn floor so short histories keep detail.
	minTurnChars = 400
)

// FormatContext renders a memory Context into the text block appended to
// system prompts. Long turns are trimmed to a per-turn budget, keeping
// the head and tail with a marker for the removed middle.
//
// Output shape:
//
//	Summary: <rolling summary>
//	Recent turns:
//	- user: ...
//	- assistant: ...
//
// Returns "" when there is nothing to include.
func FormatContext(c Context) string {
	var sections []string

	if c.Summary != "" {
		sections = append(sections, "Summary: "+c.Summary)
	}

	if len(c.Recent) > 0 {
		budget := contextCharBudget / len(c.Recent)
		if budget < minTurnChars {
			budget = minTurnChars
		}

		lines := make([]string, 0, len(c.Recent)+1)
		lines = append(lines, "Recent turns:")
		for _, m := range c.Recent {
			lines = append(lines, "- "+m.Role+": "+trimMiddle(m.Content, budget))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n")
}

// trimMiddle shortens text to roughly budget characters, keeping 60% of
// the budget from the head and 40% from the tail.
func trimMiddle(text string, budget int) string {
	if len(text) <= budget {
		return text
	}

	head := budget * 6 / 10
	tail := budget - head
	removed := len(text) - head - tail
	return fmt.Sprintf("%s [trimmed %d chars] %s", text[:head], removed, text[len(text)-tail:])
}

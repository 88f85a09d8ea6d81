// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared lipgloss styles for CLI output.
//
// Colors are dropped for non-TTY output and when NO_COLOR is set
// (https://no-color.org/). FORCE_COLOR overrides TTY detection.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// HeaderStyle is used for table headers
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255"))

	// LabelStyle is used for field labels in key/value listings
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(20)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for hints and secondary columns
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// =============================================================================
// SEMANTIC STYLES
// =============================================================================

// statusStyles colors task statuses and account states in listings.
var statusStyles = map[string]lipgloss.Style{
	"todo":        ValueStyle,
	"in_progress": WarningStyle,
	"done":        SuccessStyle,
	"canceled":    DimStyle,
	"active":      SuccessStyle,
	"disabled":    ErrorStyle,
}

// priorityStyles colors task priorities.
var priorityStyles = map[string]lipgloss.Style{
	"low":    DimStyle,
	"medium": ValueStyle,
	"high":   WarningStyle,
	"urgent": ErrorStyle,
}

// RenderStatus renders a status word in its color; unknown words are dimmed.
func RenderStatus(status string) string {
	if style, ok := statusStyles[strings.ToLower(strings.TrimSpace(status))]; ok {
		return style.Render(status)
	}
	return DimStyle.Render(status)
}

// RenderPriority renders a priority word in its color.
func RenderPriority(priority string) string {
	if style, ok := priorityStyles[strings.ToLower(strings.TrimSpace(priority))]; ok {
		return style.Render(priority)
	}
	return DimStyle.Render(priority)
}

// RenderSeparator renders a horizontal rule. Default width is 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderLabel renders a label padded to the label column.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

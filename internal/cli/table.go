// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// table.go - Column-aligned listings.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/zaura/internal/util"
)

const columnGap = "  "

// table renders rows aligned by display width, so wide runes (CJK, emoji)
// do not break the columns.
type table struct {
	headers []string
	rows    [][]string

	// maxWidth caps a column; longer cells are truncated with "..."
	maxWidth map[int]int

	// styles colors a column after padding
	styles map[int]func(string) string
}

func newTable(headers ...string) *table {
	return &table{
		headers:  headers,
		maxWidth: map[int]int{},
		styles:   map[int]func(string) string{},
	}
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.headers))
	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		s := util.SingleLine(row[i])
		if limit, ok := t.maxWidth[i]; ok {
			s = util.TruncateWidth(s, limit)
		}
		return s
	}

	for i, h := range t.headers {
		widths[i] = util.StringWidth(h)
	}
	for _, row := range t.rows {
		for i := range t.headers {
			if n := util.StringWidth(cell(row, i)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var line strings.Builder
	for i, h := range t.headers {
		if i > 0 {
			line.WriteString(columnGap)
		}
		padded := h
		if i < len(t.headers)-1 {
			padded = util.PadRight(h, widths[i])
		}
		line.WriteString(HeaderStyle.Render(padded))
	}
	fmt.Fprintln(w, line.String())

	for _, row := range t.rows {
		line.Reset()
		for i := range t.headers {
			if i > 0 {
				line.WriteString(columnGap)
			}
			s := cell(row, i)
			if i < len(t.headers)-1 {
				s = util.PadRight(s, widths[i])
			}
			if style, ok := t.styles[i]; ok {
				s = style(s)
			}
			line.WriteString(s)
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}

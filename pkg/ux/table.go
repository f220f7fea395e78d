// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under headers.
//
// Rich and plain modes draw a bordered table; machine mode emits one
// tab-separated line per row with the header first. Rows shorter than
// headers are padded with empty cells.
func Table(headers []string, rows [][]string) string {
	padded := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(headers))
		copy(cells, row)
		padded[i] = cells
	}

	if GetMode() == ModeMachine {
		var sb strings.Builder
		sb.WriteString(strings.Join(headers, "\t"))
		sb.WriteByte('\n')
		for _, row := range padded {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	rich := GetMode() == ModeRich
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(padded...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if !rich {
				return lipgloss.NewStyle().Padding(0, 1)
			}
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		})
	if rich {
		t = t.BorderStyle(lipgloss.NewStyle().Foreground(ColorTealDeep))
	}
	return t.String() + "\n"
}

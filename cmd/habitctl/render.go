package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rag133/Jeevan-saathi-sub002/pkg/habit"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	doneStyle    = cellStyle.Foreground(lipgloss.Color("#16A34A"))
	partialStyle = cellStyle.Foreground(lipgloss.Color("#CA8A04"))
	noneStyle    = cellStyle.Foreground(lipgloss.Color("#DC2626"))
)

func render(w io.Writer, format string, res result) error {
	if format == "table" {
		return writeTable(w, res)
	}
	return writeJSON(w, res.data)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, res result) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(res.header...).
		Rows(res.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(res.rows) || col >= len(res.rows[row]) {
				return cellStyle
			}
			return statusStyle(res.rows[row][col])
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}

// statusStyle 按分类状态给单元格着色
func statusStyle(cell string) lipgloss.Style {
	switch habit.Status(cell) {
	case habit.StatusDone:
		return doneStyle
	case habit.StatusPartial:
		return partialStyle
	case habit.StatusNone:
		return noneStyle
	}
	return cellStyle
}

package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableBorderColor = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	tableBorderStyle = lipgloss.NewStyle().Foreground(tableBorderColor)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableNumberStyle = tableCellStyle.AlignHorizontal(lipgloss.Right)
)

// RenderTable returns headers and rows as a bordered table. Cells in the
// numeric columns are right aligned.
func RenderTable(headers []string, rows [][]string, numeric ...int) string {
	right := make(map[int]bool, len(numeric))
	for _, col := range numeric {
		right[col] = true
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case right[col]:
				return tableNumberStyle
			default:
				return tableCellStyle
			}
		})
	return t.String()
}

// Table writes a table to w.
func Table(w io.Writer, headers []string, rows [][]string, numeric ...int) {
	fmt.Fprintln(w, RenderTable(headers, rows, numeric...))
}

package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders borderless, column-aligned rows with a muted header.
type Table struct {
	headers []string
	rows    [][]string
	styles  map[int]lipgloss.Style
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, styles: make(map[int]lipgloss.Style)}
}

// StyleColumn applies style to every body cell of column col.
func (t *Table) StyleColumn(col int, style lipgloss.Style) *Table {
	t.styles[col] = style
	return t
}

// AddRow adds a row. Missing cells are left empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of body rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// String renders the table, or "" when it has no rows.
func (t *Table) String() string {
	if len(t.rows) == 0 {
		return ""
	}
	last := len(t.headers) - 1
	tbl := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		Headers(t.headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle()
			if row == table.HeaderRow {
				style = Muted
			} else if s, ok := t.styles[col]; ok {
				style = s
			}
			if col < last {
				style = style.PaddingRight(2)
			}
			return style
		}).
		Rows(t.rows...)
	return tbl.Render() + "\n"
}

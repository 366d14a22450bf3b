package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table renders rows under a header row, e.g. the blob layout.
type Table struct {
	Headers []string
	Rows    [][]string
	// Muted marks rows drawn in the secondary color
	Muted map[int]bool
}

// NewTable creates a table with the given column headings
func NewTable(headers ...string) *Table {
	return &Table{
		Headers: headers,
		Muted:   make(map[int]bool),
	}
}

// AddRow appends a row. Missing cells render empty.
func (t *Table) AddRow(cells ...string) *Table {
	t.Rows = append(t.Rows, cells)
	return t
}

// AddMutedRow appends a row drawn in the secondary color
func (t *Table) AddMutedRow(cells ...string) *Table {
	t.Muted[len(t.Rows)] = true
	return t.AddRow(cells...)
}

// Render returns the styled table as a string
func (t *Table) Render() string {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case t.Muted[row]:
				return TableMutedCellStyle
			default:
				return TableCellStyle
			}
		})
	return tbl.Render()
}

// String implements fmt.Stringer
func (t *Table) String() string {
	return t.Render()
}

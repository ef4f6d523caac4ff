package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable writes data as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w)
	table.SetHeader(data.Headers())
	table.SetAutoFormatHeaders(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// Table is an ad-hoc TableRenderer.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, rows: make([][]string, 0)}
}

// AddRow appends a row.
func (t *Table) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

// Headers implements TableRenderer.
func (t *Table) Headers() []string { return t.headers }

// Rows implements TableRenderer.
func (t *Table) Rows() [][]string { return t.rows }

// Details renders one resource as "FIELD  VALUE" lines.
type Details struct {
	pairs [][]string
}

// NewDetails returns an empty detail view.
func NewDetails() *Details {
	return &Details{}
}

// Add appends a field. Empty values are shown as "-".
func (d *Details) Add(field, value string) *Details {
	if value == "" {
		value = "-"
	}
	d.pairs = append(d.pairs, []string{field, value})
	return d
}

// Headers implements TableRenderer.
func (d *Details) Headers() []string { return []string{"Field", "Value"} }

// Rows implements TableRenderer.
func (d *Details) Rows() [][]string { return d.pairs }

// Package models defines the core domain entities: detection tables, records,
// price series and the bookkeeping rows persisted by storage.
package models

// Table is the content of a detection sheet. The header row defines Columns;
// each data row is keyed by those column names.
type Table struct {
	Columns []string
	Rows    []Row
}

// Row is one data row. ReturnRate is derived from the percent-return cell by
// the transformer and is only meaningful for display branching.
type Row struct {
	Values     map[string]string
	ReturnRate float64
}

// NewTable pairs data rows positionally with the header (first) row. Short rows
// are padded with empty strings and cells beyond the header are dropped.
// Fewer than two input rows yields an empty table.
func NewTable(raw [][]string) Table {
	if len(raw) < 2 {
		return Table{}
	}
	header := append([]string(nil), raw[0]...)
	rows := make([]Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		values := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(cells) {
				values[col] = cells[i]
			} else {
				values[col] = ""
			}
		}
		rows = append(rows, Row{Values: values})
	}
	return Table{Columns: header, Rows: rows}
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Has reports whether the table has the named column.
func (t Table) Has(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so transforms never alias their input.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		values := make(map[string]string, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		out.Rows[i] = Row{Values: values, ReturnRate: r.ReturnRate}
	}
	if t.Columns == nil {
		out.Columns = nil
	}
	if t.Rows == nil {
		out.Rows = nil
	}
	return out
}

// Cells returns the row's values in column order, for the raw table view.
func (t Table) Cells(r Row) []string {
	cells := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cells[i] = r.Values[c]
	}
	return cells
}

package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Table is an in-memory tabular dataset with a fixed column order. Interim
// tables are always written with rows sorted by their first column so that
// re-running ingestion on the same raw input produces byte-identical files.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) AppendRow(values ...string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d values, expected %d", t.Name, len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, values)
	return nil
}

func (t *Table) NumRows() int {
	return len(t.Rows)
}

// SortRows orders rows lexicographically across all columns, first column
// first. Ties are impossible for tables keyed by a unique id but the full
// comparison keeps the ordering total regardless.
func (t *Table) SortRows() {
	sort.Slice(t.Rows, func(i, j int) bool {
		for k := range t.Columns {
			if t.Rows[i][k] != t.Rows[j][k] {
				return t.Rows[i][k] < t.Rows[j][k]
			}
		}
		return false
	})
}

func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}
	w.Flush()

	return w.Error()
}

func ReadCSV(path, name string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table %s is empty", path)
	}

	return &Table{Name: name, Columns: records[0], Rows: records[1:]}, nil
}

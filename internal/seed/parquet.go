// Package seed converts CSV seed files to Parquet and uploads them to the
// object store, where SEED models read them with read_parquet.
package seed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ErrEmptySeed is returned for a CSV file without a header row.
var ErrEmptySeed = errors.New("seed: empty csv")

// ColumnType is the Parquet type inferred for a CSV column.
type ColumnType int

const (
	ColumnString ColumnType = iota
	ColumnInt64
	ColumnDouble
	ColumnBoolean
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInt64:
		return "int64"
	case ColumnDouble:
		return "double"
	case ColumnBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Table is a parsed CSV seed.
type Table struct {
	Columns []string
	Types   []ColumnType
	Rows    [][]string
}

// ReadCSV parses a CSV seed and infers a type per column. Empty cells are
// NULL and do not take part in inference.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptySeed
	}
	if err != nil {
		return nil, fmt.Errorf("seed: read header: %w", err)
	}

	cols := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			return nil, fmt.Errorf("seed: column %d has no name", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("seed: duplicate column %q", name)
		}
		seen[name] = true
		cols[i] = name
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("seed: read rows: %w", err)
	}

	types := make([]ColumnType, len(cols))
	for i := range cols {
		types[i] = inferType(rows, i)
	}
	return &Table{Columns: cols, Types: types, Rows: rows}, nil
}

func inferType(rows [][]string, col int) ColumnType {
	isInt, isFloat, isBool := true, true, true
	nonEmpty := false
	for _, row := range rows {
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		nonEmpty = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			lv := strings.ToLower(v)
			if lv != "true" && lv != "false" {
				isBool = false
			}
		}
	}
	switch {
	case !nonEmpty:
		return ColumnString
	case isInt:
		return ColumnInt64
	case isFloat:
		return ColumnDouble
	case isBool:
		return ColumnBoolean
	}
	return ColumnString
}

func (t *Table) schema() *parquet.Schema {
	group := parquet.Group{}
	for i, name := range t.Columns {
		var node parquet.Node
		switch t.Types[i] {
		case ColumnInt64:
			node = parquet.Int(64)
		case ColumnDouble:
			node = parquet.Leaf(parquet.DoubleType)
		case ColumnBoolean:
			node = parquet.Leaf(parquet.BooleanType)
		default:
			node = parquet.String()
		}
		group[name] = parquet.Optional(node)
	}
	return parquet.NewSchema("seed", group)
}

// WriteParquet encodes the table as a Snappy-compressed Parquet file.
func (t *Table) WriteParquet() ([]byte, error) {
	schema := t.schema()

	// Group fields are ordered by name; map each leaf back to its CSV column.
	index := make(map[string]int, len(t.Columns))
	for i, name := range t.Columns {
		index[name] = i
	}
	leaves := schema.Columns()
	order := make([]int, len(leaves))
	for i, path := range leaves {
		order[i] = index[path[0]]
	}

	var buf bytes.Buffer
	w := parquet.NewWriter(&buf, schema, parquet.Compression(&parquet.Snappy))

	rows := make([]parquet.Row, 0, len(t.Rows))
	for _, rec := range t.Rows {
		row := make(parquet.Row, len(order))
		for leaf, col := range order {
			v, err := t.value(rec[col], col)
			if err != nil {
				return nil, err
			}
			if v.IsNull() {
				row[leaf] = v.Level(0, 0, leaf)
			} else {
				row[leaf] = v.Level(0, 1, leaf)
			}
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if _, err := w.WriteRows(rows); err != nil {
			return nil, fmt.Errorf("parquet: write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet: close: %w", err)
	}
	return buf.Bytes(), nil
}

func (t *Table) value(cell string, col int) (parquet.Value, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return parquet.NullValue(), nil
	}
	switch t.Types[col] {
	case ColumnInt64:
		n, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return parquet.Value{}, fmt.Errorf("seed: column %q: %w", t.Columns[col], err)
		}
		return parquet.Int64Value(n), nil
	case ColumnDouble:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return parquet.Value{}, fmt.Errorf("seed: column %q: %w", t.Columns[col], err)
		}
		return parquet.DoubleValue(f), nil
	case ColumnBoolean:
		return parquet.BooleanValue(strings.EqualFold(cell, "true")), nil
	}
	return parquet.ByteArrayValue([]byte(cell)), nil
}

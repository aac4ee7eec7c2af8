package core

import (
	"database/sql"
	"fmt"
	"strings"
)

// Row represents a single record retrieved from the database, keyed by
// column name.
type Row map[string]any

// Scanner is the view of the current row handed to a RowMapper. *sql.Rows
// satisfies it.
type Scanner interface {
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
	Scan(dest ...any) error
}

// RowMapper converts the current row into a typed value. It is supplied by
// the caller; its errors are returned unmodified.
type RowMapper[T any] func(Scanner) (T, error)

// MapRow is a RowMapper that reads the current row into a Row.
func MapRow(s Scanner) (Row, error) {
	columns, values, err := scanValues(s)
	if err != nil {
		return nil, err
	}
	row := make(Row, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	return row, nil
}

// MapValues is a RowMapper that reads the current row into a slice in
// column order.
func MapValues(s Scanner) ([]any, error) {
	_, values, err := scanValues(s)
	return values, err
}

func scanValues(s Scanner) ([]string, []any, error) {
	columns, err := s.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columnTypes, err := s.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get column types: %w", err)
	}
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	if err := s.Scan(scanArgs...); err != nil {
		return nil, nil, fmt.Errorf("failed to scan row: %w", err)
	}
	for i := range values {
		values[i] = normalize(columnTypes[i].DatabaseTypeName(), values[i])
	}
	return columns, values, nil
}

// normalize applies the conversions drivers leave to the caller: booleans
// stored as integers and text returned as bytes.
func normalize(typeName string, val any) any {
	if val == nil {
		return nil
	}
	switch strings.ToUpper(typeName) {
	case "BOOLEAN", "BOOL", "BIT":
		if intVal, ok := val.(int64); ok {
			return intVal != 0
		}
	case "TEXT", "VARCHAR", "NVARCHAR", "CHAR", "NCHAR", "NTEXT", "BPCHAR", "CLOB":
		if byteVal, ok := val.([]byte); ok {
			return string(byteVal)
		}
	}
	return val
}

// ReadTable materializes the current result set of rows.
func ReadTable(rows *sql.Rows) (Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("failed to get columns: %w", err)
	}
	table := Table{Columns: columns}
	for rows.Next() {
		values, err := MapValues(rows)
		if err != nil {
			return Table{}, err
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("error after scanning rows: %w", err)
	}
	return table, nil
}

// ReadDataSet materializes every result set of rows.
func ReadDataSet(rows *sql.Rows) (DataSet, error) {
	var set DataSet
	for {
		table, err := ReadTable(rows)
		if err != nil {
			return nil, err
		}
		set = append(set, table)
		if !rows.NextResultSet() {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after reading result sets: %w", err)
	}
	return set, nil
}

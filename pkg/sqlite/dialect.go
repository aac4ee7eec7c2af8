// Package sqlite is the SQLite dialect, backed by github.com/mattn/go-sqlite3.
//
// SQLite has no stored procedures. Routines are Go functions registered on
// the connection (see RegisterDriver) and invoked as SELECT name(args...).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

var _ core.Dialect = Dialect{}

// Dialect implements core.Dialect for SQLite.
type Dialect struct{}

func quoteIdentifier(s string) string {
	escapedS := strings.ReplaceAll(s, `"`, `""`)
	return `"` + escapedS + `"`
}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) DriverName() string { return DriverName }

// Text binds named parameters as :name/@name/$name and the rest by position.
func (Dialect) Text(query string, params []core.Param) (string, []any) {
	return query, core.NamedArgs(params)
}

// Routine renders a call to a registered function.
func (Dialect) Routine(name string, params []core.Param) (string, []any) {
	placeholders := make([]string, len(params))
	for i := range params {
		placeholders[i] = "?"
	}
	return fmt.Sprintf("SELECT %s(%s)", name, strings.Join(placeholders, ", ")), core.PositionalArgs(params)
}

func (Dialect) Paginate(query string, offset, limit int) string {
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", strings.TrimRight(query, "; \t\n"), limit, offset)
}

// ParameterCatalog returns an empty query: SQLite keeps no routine catalog.
func (Dialect) ParameterCatalog(string) (string, []any) {
	return "", nil
}

func (Dialect) CallWithOutput(context.Context, core.Querier, string, []core.Param, string) (any, error) {
	return nil, fmt.Errorf("sqlite output parameters: %w", core.ErrUnsupported)
}

// BulkLoad inserts every row through one prepared statement inside tx.
// SQLite has no bulk-copy protocol; a prepared insert in one transaction is
// its fast path.
func (Dialect) BulkLoad(ctx context.Context, tx *sql.Tx, destination string, data core.Table) (int64, error) {
	if len(data.Columns) == 0 {
		return 0, core.ErrEmptyTable
	}
	columns := make([]string, len(data.Columns))
	placeholders := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		columns[i] = quoteIdentifier(col)
		placeholders[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(destination), strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	var copied int64
	for i, row := range data.Rows {
		if len(row) != len(data.Columns) {
			return copied, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(data.Columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return copied, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
		copied++
	}
	return copied, nil
}

func (Dialect) CurrentDatabase() string {
	return "SELECT name FROM pragma_database_list WHERE seq = 0"
}

// DataSource returns the database file, or the memory database name.
func (Dialect) DataSource(dsn string) string {
	source := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(source, '?'); i >= 0 {
		source = source[:i]
	}
	return source
}

// IsTransient treats busy, locked and cannot-open as transient.
func (Dialect) IsTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
		return true
	}
	return false
}

// BuildDSN renders a file URI for cfg.Database. The connect timeout becomes
// the busy timeout; server and credentials are not used.
func (Dialect) BuildDSN(cfg core.ConnectionConfig) (string, error) {
	if strings.TrimSpace(cfg.Database) == "" {
		return "", core.NewError(core.KindValidation, "config", "", core.ErrMissingDatabase)
	}
	values := url.Values{}
	values.Set("_busy_timeout", fmt.Sprintf("%d", cfg.ConnectTimeout().Milliseconds()))
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, cfg.Params[k])
	}
	return "file:" + cfg.Database + "?" + values.Encode(), nil
}

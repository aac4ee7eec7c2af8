// Package mysql is the MySQL dialect, backed by github.com/go-sql-driver/mysql.
package mysql

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/go-sql-driver/mysql"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// DriverName is the database/sql driver registered by go-sql-driver/mysql.
const DriverName = "mysql"

// transientNumbers are the server error numbers treated as transient.
var transientNumbers = map[uint16]bool{
	1205: true, // lock wait timeout
	3024: true, // max execution time exceeded
	1049: true, // unknown database
	2006: true, // server has gone away
	2013: true, // lost connection during query
}

var readerSeq atomic.Uint64

var _ core.Dialect = Dialect{}

// Dialect implements core.Dialect for MySQL.
type Dialect struct{}

func quoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func (Dialect) Name() string { return "mysql" }

func (Dialect) DriverName() string { return DriverName }

// Text binds parameters by position; the driver has no named parameters.
func (Dialect) Text(query string, params []core.Param) (string, []any) {
	return query, core.PositionalArgs(params)
}

func (Dialect) Routine(name string, params []core.Param) (string, []any) {
	return "CALL " + name + "(" + placeholders(len(params)) + ")", core.PositionalArgs(params)
}

func (Dialect) Paginate(query string, offset, limit int) string {
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", strings.TrimRight(query, "; \t\n"), limit, offset)
}

func (Dialect) ParameterCatalog(routine string) (string, []any) {
	return `SELECT COALESCE(PARAMETER_NAME, ''), DATA_TYPE,
	COALESCE(PARAMETER_MODE, 'RETURN'), ORDINAL_POSITION
FROM information_schema.PARAMETERS
WHERE SPECIFIC_SCHEMA = DATABASE() AND SPECIFIC_NAME = ?
ORDER BY ORDINAL_POSITION`, []any{routine}
}

// CallWithOutput passes a session variable as the trailing OUT argument and
// reads it back on the same connection.
func (Dialect) CallWithOutput(ctx context.Context, q core.Querier, name string, params []core.Param, output string) (any, error) {
	call, read := outputCall(name, len(params), output)
	if _, err := q.ExecContext(ctx, call, core.PositionalArgs(params)...); err != nil {
		return nil, err
	}
	var out sql.NullString
	if err := q.QueryRowContext(ctx, read).Scan(&out); err != nil {
		return nil, err
	}
	if !out.Valid {
		return nil, nil
	}
	return out.String, nil
}

// outputCall renders the CALL that fills the session variable named after
// output, and the SELECT that reads it back.
func outputCall(name string, n int, output string) (call, read string) {
	variable := "@" + strings.TrimLeft(output, "@")
	args := placeholders(n)
	if n > 0 {
		args += ", "
	}
	return "CALL " + name + "(" + args + variable + ")", "SELECT " + variable
}

// BulkLoad streams data as tab-separated text through LOAD DATA LOCAL
// INFILE, served by a registered reader handler. The server must allow
// local_infile.
func (Dialect) BulkLoad(ctx context.Context, tx *sql.Tx, destination string, data core.Table) (int64, error) {
	if len(data.Columns) == 0 {
		return 0, core.ErrEmptyTable
	}
	payload, err := encodeRows(data)
	if err != nil {
		return 0, err
	}
	handler := fmt.Sprintf("dataaccess_%d", readerSeq.Add(1))
	mysql.RegisterReaderHandler(handler, func() io.Reader {
		return bytes.NewReader(payload)
	})
	defer mysql.DeregisterReaderHandler(handler)

	columns := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		columns[i] = quoteIdentifier(col)
	}
	query := fmt.Sprintf("LOAD DATA LOCAL INFILE 'Reader::%s' INTO TABLE %s CHARACTER SET utf8mb4 (%s)",
		handler, quoteIdentifier(destination), strings.Join(columns, ", "))
	result, err := tx.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to load data: %w", err)
	}
	return result.RowsAffected()
}

func (Dialect) CurrentDatabase() string {
	return "SELECT DATABASE()"
}

func (Dialect) DataSource(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return cfg.Addr
}

func (Dialect) IsTransient(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return transientNumbers[myErr.Number]
	}
	return false
}

// BuildDSN renders a go-sql-driver DSN over TCP. Encrypt maps to TLS; trusting
// the server certificate maps to skip-verify.
func (Dialect) BuildDSN(cfg core.ConnectionConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	c := mysql.NewConfig()
	c.Net = "tcp"
	c.Addr = cfg.Server
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.DBName = cfg.Database
	c.Timeout = cfg.ConnectTimeout()
	if cfg.Encrypt {
		c.TLSConfig = "true"
		if cfg.TrustServerCertificate {
			c.TLSConfig = "skip-verify"
		}
	}
	if len(cfg.Params) > 0 {
		c.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			c.Params[k] = v
		}
	}
	return c.FormatDSN(), nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

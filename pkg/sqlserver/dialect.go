// Package sqlserver is the Microsoft SQL Server dialect, backed by
// github.com/microsoft/go-mssqldb.
package sqlserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// DriverName is the database/sql driver registered by go-mssqldb.
const DriverName = "sqlserver"

// transientNumbers are the server error numbers treated as transient:
// timeout, cannot open database, connection broken.
var transientNumbers = map[int32]bool{
	-2:    true,
	4060:  true,
	40101: true,
}

var _ core.Dialect = Dialect{}

// Dialect implements core.Dialect for SQL Server.
type Dialect struct{}

func (Dialect) Name() string { return "sqlserver" }

func (Dialect) DriverName() string { return DriverName }

// Text binds named parameters as @name and unnamed ones as @p1, @p2, ...
func (Dialect) Text(query string, params []core.Param) (string, []any) {
	return query, core.NamedArgs(params)
}

// Routine sends the bare procedure name, which the driver issues as an RPC
// call. Named parameters bind by name, unnamed ones by position.
func (Dialect) Routine(name string, params []core.Param) (string, []any) {
	return name, core.NamedArgs(params)
}

func (Dialect) Paginate(query string, offset, limit int) string {
	return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", strings.TrimRight(query, "; \t\n"), offset, limit)
}

func (Dialect) ParameterCatalog(routine string) (string, []any) {
	return `SELECT COALESCE(PARAMETER_NAME, ''), DATA_TYPE,
	CASE WHEN IS_RESULT = 'YES' THEN 'RETURN' ELSE PARAMETER_MODE END,
	ORDINAL_POSITION
FROM INFORMATION_SCHEMA.PARAMETERS
WHERE SPECIFIC_SCHEMA = SCHEMA_NAME() AND SPECIFIC_NAME = @p1
ORDER BY ORDINAL_POSITION`, []any{routine}
}

// CallWithOutput appends an NVARCHAR OUTPUT parameter and runs the routine
// as an RPC call.
func (Dialect) CallWithOutput(ctx context.Context, q core.Querier, name string, params []core.Param, output string) (any, error) {
	var out string
	args := append(core.NamedArgs(params), sql.Named(strings.TrimLeft(output, "@"), sql.Out{Dest: &out}))
	if _, err := q.ExecContext(ctx, name, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// BulkLoad streams data through the TDS bulk-copy protocol.
func (Dialect) BulkLoad(ctx context.Context, tx *sql.Tx, destination string, data core.Table) (int64, error) {
	if len(data.Columns) == 0 {
		return 0, core.ErrEmptyTable
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(destination, mssql.BulkOptions{}, data.Columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk copy: %w", err)
	}
	defer stmt.Close()

	for i, row := range data.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("failed to queue row %d: %w", i, err)
		}
	}
	result, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to flush bulk copy: %w", err)
	}
	return result.RowsAffected()
}

func (Dialect) CurrentDatabase() string {
	return "SELECT DB_NAME()"
}

// DataSource returns the server of a sqlserver:// URL or of an ADO-style
// connection string.
func (Dialect) DataSource(dsn string) string {
	if strings.HasPrefix(dsn, "sqlserver://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		if instance := strings.Trim(u.Path, "/"); instance != "" {
			return u.Host + `\` + instance
		}
		return u.Host
	}
	for _, part := range strings.Split(dsn, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "server", "data source", "address", "addr":
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (Dialect) IsTransient(err error) bool {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return transientNumbers[msErr.Number]
	}
	var msErrPtr *mssql.Error
	if errors.As(err, &msErrPtr) && msErrPtr != nil {
		return transientNumbers[msErrPtr.Number]
	}
	return false
}

// BuildDSN renders a sqlserver:// URL. A server given as host\instance keeps
// the instance as the URL path. Integrated security omits credentials so the
// driver falls back to the platform's single sign-on.
func (Dialect) BuildDSN(cfg core.ConnectionConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	host, instance, _ := strings.Cut(cfg.Server, `\`)
	u := &url.URL{Scheme: "sqlserver", Host: host}
	if instance != "" {
		u.Path = "/" + instance
	}
	if !cfg.IntegratedSecurity {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}

	values := url.Values{}
	values.Set("database", cfg.Database)
	values.Set("connection timeout", strconv.Itoa(int(cfg.ConnectTimeout().Seconds())))
	values.Set("encrypt", strconv.FormatBool(cfg.Encrypt))
	if cfg.TrustServerCertificate {
		values.Set("TrustServerCertificate", "true")
	}
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(k, cfg.Params[k])
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

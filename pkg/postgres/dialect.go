// Package postgres is the PostgreSQL dialect, backed by github.com/lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

var _ core.Dialect = Dialect{}

// Dialect implements core.Dialect for PostgreSQL.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) DriverName() string { return DriverName }

// Text binds parameters by position; query text uses $1, $2, ...
func (Dialect) Text(query string, params []core.Param) (string, []any) {
	return query, core.PositionalArgs(params)
}

func (Dialect) Routine(name string, params []core.Param) (string, []any) {
	return "CALL " + name + "(" + placeholders(1, len(params)) + ")", core.PositionalArgs(params)
}

func (Dialect) Paginate(query string, offset, limit int) string {
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", strings.TrimRight(query, "; \t\n"), limit, offset)
}

// ParameterCatalog reads one routine in the current schema. Overloads are
// resolved to the first specific name so their parameters never merge.
func (Dialect) ParameterCatalog(routine string) (string, []any) {
	return `SELECT COALESCE(p.parameter_name, ''), p.data_type, p.parameter_mode, p.ordinal_position
FROM information_schema.parameters p
WHERE p.specific_schema = current_schema()
	AND p.specific_name = (
		SELECT r.specific_name
		FROM information_schema.routines r
		WHERE r.routine_schema = current_schema() AND r.routine_name = $1
		ORDER BY r.specific_name
		LIMIT 1
	)
ORDER BY p.ordinal_position`, []any{routine}
}

// CallWithOutput appends a NULL for the trailing INOUT parameter and reads the
// row the procedure returns. Output parameters are positional, so the output
// name is not sent.
func (Dialect) CallWithOutput(ctx context.Context, q core.Querier, name string, params []core.Param, _ string) (any, error) {
	var out sql.NullString
	if err := q.QueryRowContext(ctx, outputCall(name, len(params)), core.PositionalArgs(params)...).Scan(&out); err != nil {
		return nil, err
	}
	if !out.Valid {
		return nil, nil
	}
	return out.String, nil
}

// outputCall renders a CALL with n bound inputs and a trailing NULL for the
// INOUT slot.
func outputCall(name string, n int) string {
	args := placeholders(1, n)
	if n > 0 {
		args += ", "
	}
	return "CALL " + name + "(" + args + "NULL)"
}

// BulkLoad streams data through COPY FROM STDIN.
func (Dialect) BulkLoad(ctx context.Context, tx *sql.Tx, destination string, data core.Table) (int64, error) {
	if len(data.Columns) == 0 {
		return 0, core.ErrEmptyTable
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(destination, data.Columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	for i, row := range data.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("failed to copy row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to flush copy: %w", err)
	}
	return int64(len(data.Rows)), nil
}

func (Dialect) CurrentDatabase() string {
	return "SELECT current_database()"
}

// DataSource returns the host of a postgres:// URL or a key=value DSN.
func (Dialect) DataSource(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		return u.Host
	}
	for _, field := range strings.Fields(dsn) {
		if key, value, ok := strings.Cut(field, "="); ok && key == "host" {
			return strings.Trim(value, "'")
		}
	}
	return ""
}

// IsTransient treats connection exceptions, statement cancellation and an
// unknown database as transient.
func (Dialect) IsTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch {
	case pqErr.Code.Class() == "08":
		return true
	case pqErr.Code == "57014", pqErr.Code == "3D000":
		return true
	}
	return false
}

// BuildDSN renders a lib/pq key=value connection string.
func (Dialect) BuildDSN(cfg core.ConnectionConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	host, port, hasPort := strings.Cut(cfg.Server, ":")
	pairs := [][2]string{{"host", host}}
	if hasPort {
		pairs = append(pairs, [2]string{"port", port})
	}
	pairs = append(pairs, [2]string{"dbname", cfg.Database})
	if !cfg.IntegratedSecurity {
		pairs = append(pairs, [2]string{"user", cfg.User}, [2]string{"password", cfg.Password})
	}
	pairs = append(pairs, [2]string{"connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout().Seconds()))})

	sslmode := "disable"
	if cfg.Encrypt {
		sslmode = "verify-full"
		if cfg.TrustServerCertificate {
			sslmode = "require"
		}
	}
	pairs = append(pairs, [2]string{"sslmode", sslmode})

	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, cfg.Params[k]})
	}

	parts := make([]string, len(pairs))
	for i, kv := range pairs {
		parts[i] = kv[0] + "=" + quoteValue(kv[1])
	}
	return strings.Join(parts, " "), nil
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func placeholders(start, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(ph, ", ")
}

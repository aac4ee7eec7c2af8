package sqlite

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/mattn/go-sqlite3"
)

// RegisterDriver registers a go-sqlite3 driver under name whose connections
// expose routines as SQL functions. Each value must be a Go function
// accepted by (*sqlite3.SQLiteConn).RegisterFunc.
func RegisterDriver(name string, routines map[string]any) error {
	if slices.Contains(sql.Drivers(), name) {
		return fmt.Errorf("sqlite driver %q already registered", name)
	}
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for fn, impl := range routines {
				if err := conn.RegisterFunc(fn, impl, false); err != nil {
					return fmt.Errorf("failed to register routine %s: %w", fn, err)
				}
			}
			return nil
		},
	})
	return nil
}

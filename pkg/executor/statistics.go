package executor

import (
	"context"
	"fmt"

	"github.com/asaidimu/dataaccess/pkg/conn"
)

// Statistics describes the executor's connection.
type Statistics struct {
	State          conn.State
	ConnectTimeout int
	Database       string
	DataSource     string
}

func (s Statistics) String() string {
	return fmt.Sprintf("Connection State: %s\nConnection Timeout: %d seconds\nDatabase: %s\nData Source: %s",
		s.State, s.ConnectTimeout, s.Database, s.DataSource)
}

// Statistics opens the connection and reports its state, connect timeout,
// database and data source. The connection is closed afterwards.
func (e *Executor) Statistics(ctx context.Context) (_ Statistics, err error) {
	s, err := e.begin(ctx)
	if err != nil {
		return Statistics{}, err
	}
	defer s.endInto(true, &err)

	cmd := command{op: "statistics", query: e.dialect.CurrentDatabase()}
	var database string
	if err := s.conn.QueryRowContext(ctx, cmd.query).Scan(&database); err != nil {
		return Statistics{}, e.fail(ctx, cmd, err)
	}
	return Statistics{
		State:          e.handle.State(),
		ConnectTimeout: int(e.handle.ConnectTimeout().Seconds()),
		Database:       database,
		DataSource:     e.dialect.DataSource(e.dsn),
	}, nil
}

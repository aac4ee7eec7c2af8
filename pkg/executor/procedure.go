package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// ProcedureQuery invokes the routine name with params bound as supplied and
// maps every returned row. The statement is prepared before execution and
// bounded by the routine timeout. The connection is closed afterwards.
func ProcedureQuery[T any](ctx context.Context, e *Executor, name string, params []core.Param, mapper core.RowMapper[T]) ([]T, error) {
	cmd, err := e.renderRoutine("procedure_query", name, params)
	if err != nil {
		return nil, err
	}
	return collect(ctx, e, cmd, true, mapper)
}

// DescribeRoutine reads the declared parameters of name from the catalog.
// Nothing is bound or executed, so the result can be inspected first.
func (e *Executor) DescribeRoutine(ctx context.Context, name string) (core.RoutineDescriptor, error) {
	const op = "describe_routine"
	if !core.Validate(name) {
		return core.RoutineDescriptor{}, core.NewError(core.KindValidation, op, name, core.ErrInvalidName)
	}
	query, args := e.dialect.ParameterCatalog(name)
	if query == "" {
		return core.RoutineDescriptor{}, core.NewError(core.KindCommand, op, name,
			fmt.Errorf("%s parameter catalog: %w", e.dialect.Name(), core.ErrUnsupported))
	}

	cmd := command{op: op, text: name, kind: core.Other, query: query, args: args, timeout: e.opts.routineTimeout}
	params, err := collect(ctx, e, cmd, false, scanParamDescriptor)
	if err != nil {
		return core.RoutineDescriptor{}, err
	}
	e.logger.DebugContext(ctx, "routine described", "routine", name, "params", len(params))
	return core.RoutineDescriptor{Name: name, Params: params}, nil
}

func scanParamDescriptor(s core.Scanner) (core.ParamDescriptor, error) {
	var (
		p    core.ParamDescriptor
		mode sql.NullString
	)
	if err := s.Scan(&p.Name, &p.DataType, &mode, &p.Ordinal); err != nil {
		return p, fmt.Errorf("failed to scan parameter: %w", err)
	}
	p.Mode = core.ParamMode(mode.String)
	return p, nil
}

// ProcedureDataSet binds values against desc and returns every result set.
// Only min(declared inputs, len(values)) parameters are bound.
func (e *Executor) ProcedureDataSet(ctx context.Context, desc core.RoutineDescriptor, values []any) (_ core.DataSet, err error) {
	cmd, err := e.renderRoutine("procedure_dynamic", desc.Name, desc.Bind(values))
	if err != nil {
		return nil, err
	}
	rows, release, err := e.open(ctx, cmd, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	set, err := core.ReadDataSet(rows)
	if err != nil {
		return nil, e.fail(ctx, cmd, err)
	}
	return set, nil
}

// ProcedureTable binds values against desc and returns only the first result
// set.
func (e *Executor) ProcedureTable(ctx context.Context, desc core.RoutineDescriptor, values []any) (core.Table, error) {
	return e.procedureTable(ctx, "procedure_dynamic", desc.Name, desc.Bind(values))
}

// ProcedureTableParams runs the routine name with explicit params and returns
// its first result set.
func (e *Executor) ProcedureTableParams(ctx context.Context, name string, params []core.Param) (core.Table, error) {
	return e.procedureTable(ctx, "procedure_to_table", name, params)
}

func (e *Executor) procedureTable(ctx context.Context, op, name string, params []core.Param) (_ core.Table, err error) {
	cmd, err := e.renderRoutine(op, name, params)
	if err != nil {
		return core.Table{}, err
	}
	rows, release, err := e.open(ctx, cmd, false)
	if err != nil {
		return core.Table{}, err
	}
	defer func() {
		if rerr := release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	table, err := core.ReadTable(rows)
	if err != nil {
		return core.Table{}, e.fail(ctx, cmd, err)
	}
	return table, nil
}

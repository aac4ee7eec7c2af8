package executor

import (
	"context"
	"fmt"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// Paginated returns one page of spec's results, skipping pageIndex*pageSize
// rows and taking pageSize. The query must order its rows deterministically
// for pages to be stable. The connection is closed afterwards.
func Paginated[T any](ctx context.Context, e *Executor, spec core.CommandSpec, pageIndex, pageSize int, mapper core.RowMapper[T]) ([]T, error) {
	const op = "paginated"
	if pageIndex < 0 || pageSize <= 0 {
		return nil, core.NewError(core.KindValidation, op, spec.Text,
			fmt.Errorf("%w: index %d, size %d", core.ErrInvalidPage, pageIndex, pageSize))
	}
	if core.Resolve(spec).IsRoutine() {
		return nil, core.NewError(core.KindValidation, op, spec.Text,
			fmt.Errorf("routines cannot be paginated: %w", core.ErrUnsupported))
	}

	paged := spec
	paged.Kind = core.Other
	paged.Text = e.dialect.Paginate(spec.Text, pageIndex*pageSize, pageSize)
	cmd, err := e.render(op, paged)
	if err != nil {
		return nil, err
	}
	cmd.text = spec.Text
	return collect(ctx, e, cmd, false, mapper)
}

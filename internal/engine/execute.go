package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryes"
	"github.com/roach88/restsql/internal/querysql"
	"github.com/roach88/restsql/internal/table"
)

// executeAll runs every standalone record and stores its result. With
// parallel execution the first failure cancels the remaining requests.
func (e *Engine) executeAll(ctx context.Context, log *slog.Logger, records []*record) error {
	if !e.parallel {
		for _, rec := range records {
			if !rec.standalone() {
				continue
			}
			if err := e.executeOne(ctx, log, rec); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range records {
		if !rec.standalone() {
			continue
		}
		rec := rec
		g.Go(func() error {
			return e.executeOne(gctx, log, rec)
		})
	}
	return g.Wait()
}

func (e *Engine) executeOne(ctx context.Context, log *slog.Logger, rec *record) error {
	start := time.Now()
	var (
		result *table.Table
		err    error
	)
	switch plan := rec.plan.(type) {
	case *querysql.Plan:
		result, err = executeSQL(ctx, rec, plan)
	case *queryes.Plan:
		result, err = executeES(ctx, rec, plan)
	default:
		err = fmt.Errorf("%s: no executor for plan %T", rec.name, rec.plan)
	}
	if err != nil {
		log.Warn("subquery failed",
			"subquery", rec.name,
			"backend", rec.backend.Name,
			"error", err,
		)
		return err
	}
	rec.result = result
	log.Debug("subquery executed",
		"subquery", rec.name,
		"backend", rec.backend.Name,
		"kind", rec.plan.PlanKind(),
		"folded", len(rec.attached),
		"rows", result.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// backendError tags a driver failure with the backend name. Errors that
// already carry a code pass through.
func backendError(rec *record, err error) error {
	if ir.CodeOf(err) != "" {
		return err
	}
	return ir.WrapError(ir.ErrCodeBackend, rec.backend.Name, rec.name+" failed", err)
}

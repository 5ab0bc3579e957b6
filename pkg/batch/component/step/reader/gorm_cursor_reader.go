// Package reader provides generic item readers shared by batch jobs.
package reader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"gorm.io/gorm"

	"github.com/tigerroll/ecoroute/pkg/batch/core/application/port"
	"github.com/tigerroll/ecoroute/pkg/batch/core/domain/model"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/exception"
	"github.com/tigerroll/ecoroute/pkg/batch/support/util/logger"
)

// GormCursorReader streams the rows of a gorm query one item at a time. The number of rows
// read is kept in the execution context under "<name>.readCount", and a reader opened with
// a non-zero count skips that many rows.
type GormCursorReader[T any] struct {
	name      string
	query     func(ctx context.Context) *gorm.DB
	db        *gorm.DB
	rows      *sql.Rows
	readCount int
	ec        model.ExecutionContext
}

var _ port.ItemReader[any] = (*GormCursorReader[any])(nil)

// NewGormCursorReader creates a reader over the statement built by query. The statement
// must select the columns of T, for example db.Model(&T{}).Where(...).Order(...).
func NewGormCursorReader[T any](name string, query func(ctx context.Context) *gorm.DB) *GormCursorReader[T] {
	return &GormCursorReader[T]{name: name, query: query, ec: model.NewExecutionContext()}
}

func (r *GormCursorReader[T]) readCountKey() string { return r.name + ".readCount" }

// Open runs the query.
func (r *GormCursorReader[T]) Open(ctx context.Context, ec model.ExecutionContext) error {
	if ec != nil {
		r.ec = ec
	}
	r.readCount, _ = r.ec.GetInt(r.readCountKey())

	stmt := r.query(ctx)
	if r.readCount > 0 {
		stmt = stmt.Offset(r.readCount)
		logger.Infof("GormCursorReader '%s': resuming after %d rows.", r.name, r.readCount)
	}
	rows, err := stmt.Rows()
	if err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("GormCursorReader '%s': query failed", r.name), err, false, false)
	}
	r.db = stmt
	r.rows = rows
	return nil
}

// Read returns the next row, or io.EOF once the result set is exhausted.
func (r *GormCursorReader[T]) Read(ctx context.Context) (T, error) {
	var item T
	if r.rows == nil {
		return item, exception.NewBatchError("reader", fmt.Sprintf("GormCursorReader '%s' is not open", r.name), errors.New("reader not initialized"), false, false)
	}
	if err := ctx.Err(); err != nil {
		return item, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return item, exception.NewBatchError("reader", fmt.Sprintf("GormCursorReader '%s': row iteration failed", r.name), err, false, false)
		}
		return item, io.EOF
	}
	if err := r.db.ScanRows(r.rows, &item); err != nil {
		return item, exception.NewBatchError("reader", fmt.Sprintf("GormCursorReader '%s': failed to scan row %d", r.name, r.readCount+1), err, false, false)
	}
	r.readCount++
	r.ec.Put(r.readCountKey(), r.readCount)
	return item, nil
}

// ReadAll drains the reader.
func (r *GormCursorReader[T]) ReadAll(ctx context.Context) ([]T, error) {
	var out []T
	for {
		item, err := r.Read(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}

// Close releases the result set.
func (r *GormCursorReader[T]) Close(ctx context.Context) error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	if err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("GormCursorReader '%s': failed to close rows", r.name), err, false, false)
	}
	logger.Debugf("GormCursorReader '%s': closed after %d rows.", r.name, r.readCount)
	return nil
}

// GetExecutionContext returns the reader's execution context.
func (r *GormCursorReader[T]) GetExecutionContext(ctx context.Context) (model.ExecutionContext, error) {
	return r.ec, nil
}

// SetExecutionContext replaces the reader's execution context and restores the read count.
func (r *GormCursorReader[T]) SetExecutionContext(ctx context.Context, ec model.ExecutionContext) error {
	r.ec = ec
	r.readCount, _ = ec.GetInt(r.readCountKey())
	return nil
}

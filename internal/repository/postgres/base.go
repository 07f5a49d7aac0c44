package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// Postgres error codes the repositories translate.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqInvalidText         = "22P02"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

// NewBaseRepository creates a new base repository. m may be nil.
func NewBaseRepository(db *sqlx.DB, m *metrics.Metrics) BaseRepository {
	return BaseRepository{db: db, metrics: m}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Storage("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Storage("commit transaction", err)
	}
	return nil
}

func (r *BaseRepository) get(ctx context.Context, q querier, op string, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := q.GetContext(ctx, dest, query, args...)
	r.metrics.ObserveDB(op, start, ignoreNoRows(err))
	return err
}

func (r *BaseRepository) selectAll(ctx context.Context, q querier, op string, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	err := q.SelectContext(ctx, dest, query, args...)
	r.metrics.ObserveDB(op, start, err)
	return err
}

func (r *BaseRepository) exec(ctx context.Context, q querier, op string, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	res, err := q.ExecContext(ctx, query, args...)
	r.metrics.ObserveDB(op, start, err)
	return res, err
}

// execOne runs a statement that must touch exactly one row.
func (r *BaseRepository) execOne(ctx context.Context, q querier, op, resource, query string, args ...interface{}) error {
	res, err := r.exec(ctx, q, op, query, args...)
	if err != nil {
		return mapError(op, resource, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperrors.Storage(op, err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}

func ignoreNoRows(err error) error {
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

// mapError translates driver errors into the application taxonomy.
func mapError(op, resource string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		return appErr
	}

	if apperrors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}

	var pqErr *pq.Error
	if apperrors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return apperrors.Conflict(fmt.Sprintf("%s already exists", resource), err)
		case pqForeignKeyViolation:
			return apperrors.NotFound("referenced record", err)
		case pqCheckViolation, pqInvalidText:
			return apperrors.Validation(fmt.Sprintf("invalid %s", resource), err)
		}
	}

	return apperrors.Storage(op, err)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const rollbackTimeout = 5 * time.Second

var tracer = otel.Tracer("postgres")

// Transactor runs fn inside one transaction. Nested calls reuse the outer transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Transactor = (*transactor)(nil)

type transactor struct {
	db  *DB
	log *zap.Logger
}

func NewTransactor(db *DB, log *zap.Logger) Transactor {
	if log == nil {
		log = zap.NewNop()
	}
	return &transactor{db: db, log: log}
}

// WithTx commits when fn returns nil and rolls back on an error or a panic.
// A panic is re-raised after the rollback.
func (t *transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if _, err := txFrom(ctx); err == nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "postgres.tx")
	defer span.End()

	tx, err := t.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("begin tx: %w", mapErr(err))
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			t.rollback(txCtx, tx)
			panic(p)
		}
		if txErr != nil {
			span.RecordError(txErr)
			t.rollback(txCtx, tx)
			return
		}
		if err := tx.Commit(txCtx); err != nil {
			span.RecordError(err)
			t.log.Error("commit", zap.Error(err))
			txErr = fmt.Errorf("commit: %w", mapErr(err))
		}
	}()

	return fn(txCtx)
}

func (t *transactor) rollback(ctx context.Context, tx pgx.Tx) {
	// the request ctx may already be cancelled
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := tx.Rollback(rctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		t.log.Error("rollback", zap.Error(err))
	}
}

type txKey struct{}

var ErrTxNotFound = errors.New("tx not found in context")

func txFrom(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	if !ok {
		return nil, ErrTxNotFound
	}
	return tx, nil
}

// querier is the part of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (db *DB) querier(ctx context.Context) querier {
	if tx, err := txFrom(ctx); err == nil && tx != nil {
		return tx
	}
	return db.Pool
}

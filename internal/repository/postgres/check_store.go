package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
)

var _ check.Store = (*CheckStore)(nil)

// CheckStore is the authoritative check collection backed by Postgres.
// Writes are scoped to the owner of the last successful Authenticate.
type CheckStore struct {
	db  *DB
	tx  Transactor
	log *zap.Logger

	mu    sync.RWMutex
	owner string
}

func NewCheckStore(db *DB, tx Transactor, log *zap.Logger) *CheckStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckStore{db: db, tx: tx, log: log}
}

const checkColumns = `id, owner_id, name, url, order_index, folder, disabled, disabled_reason, disabled_at,
status, last_status_code, response_time_ms, consecutive_failures, consecutive_successes,
interval_sec, region, last_checked_at, next_check_at, created_at, updated_at`

const (
	qListByOwner = `SELECT ` + checkColumns + `
FROM checks
WHERE owner_id = $1
ORDER BY order_index, id;`

	qInsertCheck = `
INSERT INTO checks (id, owner_id, name, url, order_index, folder, disabled, disabled_reason, disabled_at,
                    status, interval_sec, region, next_check_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
RETURNING ` + checkColumns + `;`

	qDeleteCheck = `DELETE FROM checks WHERE id = $1 AND owner_id = $2;`

	qBumpCount = `UPDATE users SET check_count = GREATEST(check_count + $2, 0) WHERE id = $1;`
)

func scanCheck(row pgx.Row) (check.Check, error) {
	var (
		c                                check.Check
		status                           string
		intervalSec                      int64
		disabledAt, lastChecked, nextRun *time.Time
	)
	if err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.URL,
		&c.OrderIndex,
		&c.Folder,
		&c.Disabled,
		&c.DisabledReason,
		&disabledAt,
		&status,
		&c.LastStatusCode,
		&c.ResponseTimeMs,
		&c.ConsecutiveFailures,
		&c.ConsecutiveSuccesses,
		&intervalSec,
		&c.Region,
		&lastChecked,
		&nextRun,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return check.Check{}, err
	}
	c.Status = check.Status(status)
	c.Interval = time.Duration(intervalSec) * time.Second
	c.DisabledAt = fromNull(disabledAt)
	c.LastCheckedAt = fromNull(lastChecked)
	c.NextCheckAt = fromNull(nextRun)
	return c, nil
}

func (s *CheckStore) session() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.owner == "" {
		return "", fmt.Errorf("%w: %w", check.ErrPermissionDenied, ErrNotAuthenticated)
	}
	return s.owner, nil
}

func (s *CheckStore) QueryOnce(ctx context.Context, q check.Query) ([]check.Check, error) {
	owner, err := s.session()
	if err != nil {
		return nil, err
	}
	if q.OwnerID != owner {
		return nil, fmt.Errorf("%w: query for another owner", check.ErrPermissionDenied)
	}

	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.querier(ctx).Query(ctx, qListByOwner, owner)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", mapErr(err))
	}
	defer rows.Close()

	out := make([]check.Check, 0, 16)
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", mapErr(err))
	}
	return out, nil
}

// CreateOne assigns the id and bumps the owner's check counter in the same transaction.
func (s *CheckStore) CreateOne(ctx context.Context, c check.Check) (check.Check, error) {
	owner, err := s.session()
	if err != nil {
		return check.Check{}, err
	}
	if c.OwnerID != "" && c.OwnerID != owner {
		return check.Check{}, fmt.Errorf("%w: create for another owner", check.ErrPermissionDenied)
	}
	if c.Status == "" {
		c.Status = check.StatusUnknown
	}

	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	var created check.Check
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		q := s.db.querier(ctx)
		row := q.QueryRow(ctx, qInsertCheck,
			uuid.NewString(),
			owner,
			c.Name,
			c.URL,
			c.OrderIndex,
			c.Folder,
			c.Disabled,
			c.DisabledReason,
			nullTime(c.DisabledAt),
			string(c.Status),
			int64(c.Interval/time.Second),
			c.Region,
			nullTime(c.NextCheckAt),
		)
		var err error
		if created, err = scanCheck(row); err != nil {
			return fmt.Errorf("insert check: %w", mapErr(err))
		}
		if _, err := q.Exec(ctx, qBumpCount, owner, 1); err != nil {
			return fmt.Errorf("bump check count: %w", mapErr(err))
		}
		return nil
	})
	if err != nil {
		return check.Check{}, err
	}
	return created, nil
}

func (s *CheckStore) UpdateOne(ctx context.Context, id string, p check.Patch) error {
	owner, err := s.session()
	if err != nil {
		return err
	}
	sql, args, ok := updateSQL(id, owner, p)
	if !ok {
		return nil
	}

	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update check %s: %w", id, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update check %s: %w", id, check.ErrNotFound)
	}
	return nil
}

// BatchUpdate applies every update in one transaction. A missing document aborts the whole batch.
func (s *CheckStore) BatchUpdate(ctx context.Context, updates []check.Update) error {
	owner, err := s.session()
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		sql, args, ok := updateSQL(u.ID, owner, u.Patch)
		if !ok {
			continue
		}
		b.Queue(sql, args...)
		ids = append(ids, u.ID)
	}
	if b.Len() == 0 {
		return nil
	}

	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	return s.tx.WithTx(ctx, func(ctx context.Context) (err error) {
		br := s.db.querier(ctx).SendBatch(ctx, b)
		defer func() {
			if cerr := br.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close batch: %w", mapErr(cerr))
			}
		}()
		for _, id := range ids {
			tag, err := br.Exec()
			if err != nil {
				return fmt.Errorf("batch update %s: %w", id, mapErr(err))
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("batch update %s: %w", id, check.ErrNotFound)
			}
		}
		return nil
	})
}

func (s *CheckStore) DeleteOne(ctx context.Context, id string) error {
	owner, err := s.session()
	if err != nil {
		return err
	}

	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		q := s.db.querier(ctx)
		tag, err := q.Exec(ctx, qDeleteCheck, id, owner)
		if err != nil {
			return fmt.Errorf("delete check %s: %w", id, mapErr(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete check %s: %w", id, check.ErrNotFound)
		}
		if _, err := q.Exec(ctx, qBumpCount, owner, -1); err != nil {
			return fmt.Errorf("bump check count: %w", mapErr(err))
		}
		return nil
	})
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/NordCoder/checksync/internal/domain/check"
)

const (
	qUserInsert = `
INSERT INTO users (id, secret_hash)
VALUES ($1, $2);`

	qUserSecret = `SELECT secret_hash FROM users WHERE id = $1;`

	qUserCount = `SELECT check_count FROM users WHERE id = $1;`
)

// CreateUser registers an owner identity with a bcrypt hash of its secret.
func (s *CheckStore) CreateUser(ctx context.Context, ownerID, secret string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" || secret == "" {
		return check.Invalid("user", "owner id and secret are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.querier(ctx).Exec(ctx, qUserInsert, ownerID, string(hash)); err != nil {
		return fmt.Errorf("user insert: %w", mapErr(err))
	}
	return nil
}

// Authenticate verifies the owner's secret and scopes the store to that owner.
// Unknown owners and wrong secrets are indistinguishable to the caller.
func (s *CheckStore) Authenticate(ctx context.Context, ownerID, secret string) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	var hash string
	err := s.db.querier(ctx).QueryRow(ctx, qUserSecret, ownerID).Scan(&hash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: bad credentials", check.ErrPermissionDenied)
	case err != nil:
		return fmt.Errorf("load user: %w", mapErr(err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		s.log.Debug("secret mismatch", zap.String("owner", ownerID))
		return fmt.Errorf("%w: bad credentials", check.ErrPermissionDenied)
	}

	s.mu.Lock()
	s.owner = ownerID
	s.mu.Unlock()
	return nil
}

// CheckCount returns the server-maintained counter for the authenticated owner.
func (s *CheckStore) CheckCount(ctx context.Context) (int, error) {
	owner, err := s.session()
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.querier(ctx).QueryRow(ctx, qUserCount, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("check count: %w", mapErr(err))
	}
	return n, nil
}

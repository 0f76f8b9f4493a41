package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/NordCoder/checksync/internal/config/checksync"
	pg "github.com/NordCoder/checksync/internal/repository/postgres"
)

func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pg.DB, error) {
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Debug("db connected", zap.Int32("max_conns", db.Pool.Config().MaxConns))
	return db, nil
}

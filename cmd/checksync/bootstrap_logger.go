package main

import (
	"go.uber.org/zap"

	config "github.com/NordCoder/checksync/internal/config/checksync"
	"github.com/NordCoder/checksync/internal/obs"
)

func initLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	lc := cfg.AsLoggerConfig()
	if verbose {
		lc.Level = "debug"
	}
	return obs.NewLogger(*lc)
}

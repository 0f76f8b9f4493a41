package checksync

import (
	"time"

	"github.com/NordCoder/checksync/internal/folder"
	"github.com/NordCoder/checksync/internal/ordering"
)

type Mode string

const (
	ModeRealtime Mode = "realtime"
	ModeOneShot  Mode = "oneshot"
)

type Config struct {
	Mode            Mode
	SettleWindow    time.Duration
	MaxBatchSize    int
	Ordering        ordering.Config
	Folders         folder.Limits
	MaxURLLen       int
	MaxNameLen      int
	DeniedHosts     []string
	DefaultInterval time.Duration
	FlushTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Mode:         ModeRealtime,
		SettleWindow: 300 * time.Millisecond,
		MaxBatchSize: 500,
		Ordering:     ordering.DefaultConfig(),
		Folders:      folder.DefaultLimits(),
		MaxURLLen:    2048,
		MaxNameLen:   100,
		DeniedHosts: []string{
			"localhost", "127.0.0.1", "0.0.0.0", "::1", "169.254.169.254", "metadata.google.internal",
		},
		DefaultInterval: 5 * time.Minute,
		FlushTimeout:    30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.SettleWindow <= 0 {
		c.SettleWindow = d.SettleWindow
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = d.MaxBatchSize
	}
	if c.Ordering.Gap <= 0 || c.Ordering.MinGap <= 0 {
		c.Ordering = d.Ordering
	}
	if c.Folders.MaxDepth <= 0 && c.Folders.MaxPathLen <= 0 {
		c.Folders = d.Folders
	}
	if c.MaxURLLen <= 0 {
		c.MaxURLLen = d.MaxURLLen
	}
	if c.MaxNameLen <= 0 {
		c.MaxNameLen = d.MaxNameLen
	}
	if c.DeniedHosts == nil {
		c.DeniedHosts = d.DeniedHosts
	}
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = d.DefaultInterval
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = d.FlushTimeout
	}
	return c
}

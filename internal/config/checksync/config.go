package checksync_config

import (
	"time"

	"github.com/NordCoder/checksync/internal/folder"
	"github.com/NordCoder/checksync/internal/obs"
	"github.com/NordCoder/checksync/internal/ordering"
	"github.com/NordCoder/checksync/internal/repository/kafka"
	pg "github.com/NordCoder/checksync/internal/repository/postgres"
	"github.com/NordCoder/checksync/internal/services/checksync"
	"github.com/NordCoder/checksync/internal/services/prober"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Auth is the identity pair a CLI session logs in with.
type Auth struct {
	Owner  string `mapstructure:"owner"`
	Secret string `mapstructure:"secret"`
}

type SQLite struct {
	Path string `mapstructure:"path"`
}

type Sync struct {
	Mode             string        `mapstructure:"mode"`
	SettleWindow     time.Duration `mapstructure:"settle_window"`
	MaxBatchSize     int           `mapstructure:"max_batch_size"`
	Gap              int64         `mapstructure:"gap"`
	MinGap           int64         `mapstructure:"min_gap"`
	MaxFolderDepth   int           `mapstructure:"max_folder_depth"`
	MaxFolderPathLen int           `mapstructure:"max_folder_path_len"`
	MaxURLLen        int           `mapstructure:"max_url_len"`
	MaxNameLen       int           `mapstructure:"max_name_len"`
	DeniedHosts      []string      `mapstructure:"denied_hosts"`
	DefaultInterval  time.Duration `mapstructure:"default_interval"`
	FlushTimeout     time.Duration `mapstructure:"flush_timeout"`
}

type Config struct {
	App    App           `mapstructure:"app"`
	Server Server        `mapstructure:"server"`
	DB     pg.Config     `mapstructure:"db"`
	Kafka  kafka.Config  `mapstructure:"kafka_out"`
	SQLite SQLite        `mapstructure:"sqlite"`
	HTTP   prober.Config `mapstructure:"http"`
	OTEL   OTEL          `mapstructure:"otel"`
	Log    Log           `mapstructure:"log"`
	Auth   Auth          `mapstructure:"auth"`
	Sync   Sync          `mapstructure:"sync"`
}

func (c *Config) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      c.OTEL.Enable,
		Endpoint:    c.OTEL.OTLPEndpoint,
		ServiceName: c.OTEL.ServiceName,
		Version:     c.App.Version,
		SampleRatio: c.OTEL.SampleRatio,
	}
}

func (c *Config) AsLoggerConfig() *obs.LogConfig {
	return &obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

func (s Sync) AsEngineConfig() checksync.Config {
	return checksync.Config{
		Mode:         checksync.Mode(s.Mode),
		SettleWindow: s.SettleWindow,
		MaxBatchSize: s.MaxBatchSize,
		Ordering:     ordering.Config{Gap: s.Gap, MinGap: s.MinGap},
		Folders: folder.Limits{
			MaxDepth:   s.MaxFolderDepth,
			MaxPathLen: s.MaxFolderPathLen,
		},
		MaxURLLen:       s.MaxURLLen,
		MaxNameLen:      s.MaxNameLen,
		DeniedHosts:     s.DeniedHosts,
		DefaultInterval: s.DefaultInterval,
		FlushTimeout:    s.FlushTimeout,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "github.com/NordCoder/checksync/internal/config/checksync"
	"github.com/NordCoder/checksync/internal/services/checksync"
)

type app struct {
	cfgPath string
	owner   string
	secret  string
	verbose bool
	format  string

	cfg      *config.Config
	log      *zap.Logger
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "checksync",
		Short:         "Manage uptime checks against the shared check store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.finish(cmd.Context())
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&a.cfgPath, "config", "c", "", "path to a yaml config file")
	f.StringVar(&a.owner, "owner", "", "owner identity (overrides auth.owner)")
	f.StringVar(&a.secret, "secret", "", "owner secret (overrides auth.secret)")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	f.StringVar(&a.format, "format", "text", "output format (text|json)")

	cmd.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newRemoveCmd(a),
		newToggleCmd(a),
		newSettingsCmd(a),
		newMoveCmd(a),
		newSetFolderCmd(a),
		newProbeCmd(a),
		newStatsCmd(a),
		newFolderCmd(a),
		newWatchCmd(a),
		newUserCmd(a),
		newMigrateCmd(a),
		newEventsCmd(a),
	)
	return cmd
}

func (a *app) init(ctx context.Context) error {
	if a.format != "text" && a.format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", a.format)
	}
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.owner != "" {
		cfg.Auth.Owner = a.owner
	}
	if a.secret != "" {
		cfg.Auth.Secret = a.secret
	}
	a.cfg = cfg

	if a.log, err = initLogger(cfg, a.verbose); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if a.shutdown, err = initOTel(ctx, cfg, a.log); err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	return nil
}

func (a *app) finish(ctx context.Context) error {
	if a.shutdown != nil {
		if err := a.shutdown(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn("otel shutdown", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}

// withSession runs fn against a one-shot session and always logs out afterwards.
func (a *app) withSession(cmd *cobra.Command, fn func(s *session) error) error {
	ctx := cmd.Context()
	s, err := a.openSession(ctx, checksync.ModeOneShot, sessionHooks(a))
	if err != nil {
		return err
	}
	runErr := fn(s)
	closeErr := s.close(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func (a *app) emit(w io.Writer, v any, text func(io.Writer) error) error {
	if a.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func splitIDs(args []string) []string {
	var out []string
	for _, a := range args {
		for _, id := range strings.Split(a, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}

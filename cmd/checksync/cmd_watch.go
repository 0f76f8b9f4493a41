package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/obs"
	"github.com/NordCoder/checksync/internal/services/checksync"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		mode string
		poll time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a live session open and print status transitions",
		Long: "Runs the subscription lifecycle until interrupted. SIGUSR1 suspends the\n" +
			"live subscription as if the client were hidden, SIGUSR2 resumes it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := checksync.Mode(mode)
			if m != checksync.ModeRealtime && m != checksync.ModeOneShot {
				return fmt.Errorf("invalid mode %q", mode)
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			hooks := sessionHooks(a)
			hooks.OnStatusChange = func(ch checksync.StatusChange) {
				fmt.Fprintf(out, "%s %s %s -> %s (%s)\n",
					time.Now().Format(time.TimeOnly), ch.Check.Name, ch.Old, ch.New, ch.Check.URL)
			}
			s, err := a.openSession(ctx, m, hooks)
			if err != nil {
				return err
			}
			defer s.close(context.WithoutCancel(ctx))

			ms := obs.BootstrapMetricsServer(a.cfg.Server.MetricsAddr, s.db.Ping, a.log)
			defer func() {
				shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.GracefulTimeout)
				defer cancel()
				_ = ms.Shutdown(shCtx)
			}()

			a.log.Info("watching",
				zap.String("owner", a.cfg.Auth.Owner),
				zap.String("mode", mode),
				zap.Int("checks", s.engine().Snapshot().Len()))

			vis := make(chan os.Signal, 1)
			signal.Notify(vis, syscall.SIGUSR1, syscall.SIGUSR2)
			defer signal.Stop(vis)

			var tick <-chan time.Time
			if m == checksync.ModeOneShot && poll > 0 {
				t := time.NewTicker(poll)
				defer t.Stop()
				tick = t.C
			}

			for {
				select {
				case <-ctx.Done():
					a.log.Info("shutdown signal")
					return nil
				case sig := <-vis:
					visible := sig == syscall.SIGUSR2
					if err := s.mgr.SetVisible(ctx, visible); err != nil {
						a.log.Warn("set visible", zap.Bool("visible", visible), zap.Error(err))
						continue
					}
					a.log.Info("visibility changed", zap.Bool("visible", visible), zap.Stringer("state", s.mgr.State()))
				case <-tick:
					s.mgr.Refresh()
					if err := s.mgr.Ensure(ctx); err != nil {
						a.log.Warn("refresh", zap.Error(err))
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(checksync.ModeRealtime), "realtime or oneshot")
	cmd.Flags().DurationVar(&poll, "poll", 30*time.Second, "refetch period in oneshot mode")
	return cmd
}

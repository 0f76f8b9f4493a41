package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NordCoder/checksync/internal/repository/kafka"
	pg "github.com/NordCoder/checksync/internal/repository/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pg.Migrate(cmd.Context(), a.cfg.DB.DSN); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "migrations: up OK")
			return err
		},
	}
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage owner identities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add OWNER SECRET",
		Short: "Register an owner with a secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := initDB(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			store := pg.NewCheckStore(db, pg.NewTransactor(db, a.log), a.log)
			if err := store.CreateUser(ctx, args[0], args[1]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "owner %s created\n", args[0])
			return err
		},
	})
	return cmd
}

func newEventsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published status events",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print status transitions from the event topic until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Kafka.Enabled() {
				return errors.New("kafka_out.brokers is not configured")
			}
			c := kafka.NewConsumer(a.cfg.Kafka, a.log)
			defer c.Close()

			out := cmd.OutOrStdout()
			err := c.Consume(cmd.Context(), kafka.JSONHandler(func(_ context.Context, _ string, ev kafka.StatusChanged) error {
				return a.emit(out, ev, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s %s %s -> %s code=%d\n",
						ev.At.Format("2006-01-02T15:04:05Z07:00"), ev.CheckID, ev.Old, ev.New, ev.StatusCode)
					return err
				})
			}))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	return cmd
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NordCoder/checksync/internal/domain/check"
	"github.com/NordCoder/checksync/internal/services/checksync"
)

func sessionHooks(a *app) checksync.ManagerDeps {
	return checksync.ManagerDeps{
		OnFlushError: func(ids []string, err error) {
			a.log.Error("folder update not saved", zap.Strings("ids", ids), zap.Error(err))
		},
	}
}

func printChecks(w io.Writer, checks []check.Check) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tSTATUS\tFOLDER\tURL\tINTERVAL\tREGION")
	for i, c := range checks {
		status := string(c.Status)
		if c.Disabled {
			status = "disabled"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i, c.ID, c.Name, status, c.Folder, c.URL, c.Interval, c.Region)
	}
	return tw.Flush()
}

func newListCmd(a *app) *cobra.Command {
	var folderFilter string
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List checks in display order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				checks := s.engine().Checks()
				if folderFilter != "" {
					kept := checks[:0]
					for _, c := range checks {
						if c.Folder == folderFilter || strings.HasPrefix(c.Folder, folderFilter+"/") {
							kept = append(kept, c)
						}
					}
					checks = kept
				}
				return a.emit(cmd.OutOrStdout(), checks, func(w io.Writer) error { return printChecks(w, checks) })
			})
		},
	}
	cmd.Flags().StringVar(&folderFilter, "folder", "", "only checks in this folder or below")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var folderPath string
	cmd := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Create a check at the end of the list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(s *session) error {
				c, err := s.engine().Add(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if folderPath != "" {
					if err := s.engine().SetFolder(cmd.Context(), c.ID, folderPath); err != nil {
						return err
					}
					c, _ = s.engine().Snapshot().Get(c.ID)
				}
				return a.emit(cmd.OutOrStdout(), c, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "created %s\n", c.ID)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&folderPath, "folder", "", "place the new check in this folder")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var name, url string
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a check's name or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p check.Patch
			if cmd.Flags().Changed("name") {
				p.Name = &name
			}
			if cmd.Flags().Changed("url") {
				p.URL = &url
			}
			return a.withSession(cmd, func(s *session) error {
				return s.engine().Update(cmd.Context(), args[0], p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&url, "url", "", "new target URL")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"delete"},
		Short:   "Delete one or more checks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := splitIDs(args)
			return a.withSession(cmd, func(s *session) error {
				if len(ids) == 1 {
					return s.engine().Delete(cmd.Context(), ids[0])
				}
				return s.engine().BulkDelete(cmd.Context(), ids)
			})
		},
	}
}

func newToggleCmd(a *app) *cobra.Command {
	var off, on bool
	cmd := &cobra.Command{
		Use:   "toggle ID... (--off|--on)",
		Short: "Disable or enable checks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if off == on {
				return fmt.Errorf("exactly one of --off or --on is required")
			}
			ids := splitIDs(args)
			return a.withSession(cmd, func(s *session) error {
				if len(ids) == 1 {
					return s.engine().ToggleStatus(cmd.Context(), ids[0], off)
				}
				return s.engine().BulkToggleStatus(cmd.Context(), ids, off)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "disable")
	cmd.Flags().BoolVar(&on, "on", false, "enable")
	return cmd
}

func newSettingsCmd(a *app) *cobra.Command {
	var interval time.Duration
	var region string
	cmd := &cobra.Command{
		Use:   "settings ID...",
		Short: "Change interval or region on several checks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st check.Settings
			if cmd.Flags().Changed("interval") {
				st.Interval = &interval
			}
			if cmd.Flags().Changed("region") {
				st.Region = &region
			}
			return a.withSession(cmd, func(s *session) error {
				return s.engine().BulkUpdateSettings(cmd.Context(), splitIDs(args), st)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "probe interval")
	cmd.Flags().StringVar(&region, "region", "", "probe region")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv FROM TO",
		Short: "Move the check at position FROM to position TO",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("FROM: %w", err)
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("TO: %w", err)
			}
			return a.withSession(cmd, func(s *session) error {
				return s.engine().Reorder(cmd.Context(), from, to)
			})
		},
	}
}

func newSetFolderCmd(a *app) *cobra.Command {
	var debounce bool
	cmd := &cobra.Command{
		Use:   "set-folder ID... PATH",
		Short: "Place checks in a folder (empty PATH clears it)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, path := splitIDs(args[:len(args)-1]), args[len(args)-1]
			return a.withSession(cmd, func(s *session) error {
				for _, id := range ids {
					var err error
					if debounce {
						err = s.engine().DebouncedSetFolder(id, path)
					} else {
						err = s.engine().SetFolder(cmd.Context(), id, path)
					}
					if err != nil {
						return fmt.Errorf("%s: %w", id, err)
					}
				}
				if debounce {
					return s.engine().FlushPendingFolderUpdates(cmd.Context())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&debounce, "debounce", false, "coalesce all edits into one batched write")
	return cmd
}

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe ID",
		Short: "Run a check now and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(s *session) error {
				c, err := s.engine().ManualCheck(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.emit(cmd.OutOrStdout(), c, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s %s code=%d latency=%dms\n",
						c.ID, c.Status, c.LastStatusCode, c.ResponseTimeMs)
					return err
				})
			})
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-owner totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(s *session) error {
				st := s.engine().Stats()
				remote, err := s.store.CheckCount(cmd.Context())
				if err != nil {
					return err
				}
				out := struct {
					check.Stats
					RemoteCount int
				}{st, remote}
				return a.emit(cmd.OutOrStdout(), out, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "total=%d up=%d down=%d unknown=%d disabled=%d (server count %d)\n",
						st.Total, st.Up, st.Down, st.Unknown, st.Disabled, remote)
					return err
				})
			})
		},
	}
}

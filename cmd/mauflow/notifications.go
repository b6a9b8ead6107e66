package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/app"
	"github.com/hylla/mauflow/internal/domain"
)

// recipient resolves whose notifications a command acts on: --user, then the acting user.
func recipient(ctx context.Context, s *session, override string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	u, err := s.engine.Directory.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func parseNotificationTypes(raw []string) ([]domain.NotificationType, error) {
	out := make([]domain.NotificationType, 0, len(raw))
	for _, r := range raw {
		t := domain.NotificationType(strings.TrimSpace(r))
		if !domain.IsValidNotificationType(t) {
			return nil, fmt.Errorf("unknown notification type %q", r)
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *cli) notificationsCommand() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "Read and manage notifications",
	}
	cmd.PersistentFlags().StringVar(&user, "user", "", "recipient id (defaults to the acting user)")

	var (
		unread, archived, all, asJSON bool
		types                         []string
		query                         string
		limit                         int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "notifications list", func(ctx context.Context, s *session) error {
				id, err := recipient(ctx, s, user)
				if err != nil {
					return err
				}
				var list []domain.Notification
				if archived {
					list = s.engine.Notifications.ListArchived(ctx, id)
				} else {
					parsed, err := parseNotificationTypes(types)
					if err != nil {
						return err
					}
					list = s.engine.Notifications.ListForUser(ctx, id, app.NotificationFilter{
						UnreadOnly:       unread,
						Types:            parsed,
						Query:            query,
						ApplyPreferences: !all,
						Limit:            limit,
					})
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				renderNotifications(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	listCmd.Flags().BoolVar(&archived, "archived", false, "list archived notifications instead")
	listCmd.Flags().BoolVar(&all, "all", false, "ignore notification preferences and quiet hours")
	listCmd.Flags().StringSliceVar(&types, "type", nil, "only these notification types")
	listCmd.Flags().StringVar(&query, "query", "", "match title or message text")
	listCmd.Flags().IntVar(&limit, "limit", 0, "maximum notifications to show")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	byID := func(use, short string, fn func(context.Context, *session, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withSession(cmd, "notifications "+use, func(ctx context.Context, s *session) error {
					return fn(ctx, s, args[0])
				})
			},
		}
	}
	readCmd := &cobra.Command{
		Use:   "read <id>...",
		Short: "Mark notifications read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "notifications read", func(ctx context.Context, s *session) error {
				n, err := s.engine.Notifications.BulkMarkAsRead(ctx, args)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "marked %d read\n", n)
				return nil
			})
		},
	}
	readAllCmd := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification for the recipient read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "notifications read-all", func(ctx context.Context, s *session) error {
				id, err := recipient(ctx, s, user)
				if err != nil {
					return err
				}
				n, err := s.engine.Notifications.MarkAllAsRead(ctx, id)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "marked %d read\n", n)
				return nil
			})
		},
	}
	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete notifications",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "notifications delete", func(ctx context.Context, s *session) error {
				n, err := s.engine.Notifications.BulkDeleteNotifications(ctx, args)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", n)
				return nil
			})
		},
	}

	var days int
	retention := func(use, short, verb string, fn func(context.Context, *session, int) (int, error)) *cobra.Command {
		sub := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withSession(cmd, "notifications "+use, func(ctx context.Context, s *session) error {
					d := days
					if d <= 0 {
						d = s.cfg.Notifications.RetentionDays
					}
					n, err := fn(ctx, s, d)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", verb, n)
					return nil
				})
			},
		}
		sub.Flags().IntVar(&days, "days", 0, "age in days (defaults to notifications.retention_days)")
		return sub
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show notification counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "notifications stats", func(ctx context.Context, s *session) error {
				id, err := recipient(ctx, s, user)
				if err != nil {
					return err
				}
				renderStats(cmd.OutOrStdout(), s.engine.Notifications.Stats(ctx, id))
				return nil
			})
		},
	}

	cmd.AddCommand(
		listCmd,
		readCmd,
		byID("unread", "Mark a notification unread", func(ctx context.Context, s *session, id string) error {
			return s.engine.Notifications.MarkAsUnread(ctx, id)
		}),
		readAllCmd,
		deleteCmd,
		byID("archive", "Archive a notification", func(ctx context.Context, s *session, id string) error {
			return s.engine.Notifications.Archive(ctx, id)
		}),
		byID("unarchive", "Restore an archived notification", func(ctx context.Context, s *session, id string) error {
			return s.engine.Notifications.Unarchive(ctx, id)
		}),
		retention("archive-old", "Archive notifications older than the retention window", "archived", func(ctx context.Context, s *session, d int) (int, error) {
			return s.engine.Notifications.ArchiveOldNotifications(ctx, d)
		}),
		retention("clear-old", "Delete notifications older than the retention window", "cleared", func(ctx context.Context, s *session, d int) (int, error) {
			return s.engine.Notifications.ClearOldNotifications(ctx, d)
		}),
		statsCmd,
		c.preferencesCommand(&user),
	)
	return cmd
}

func (c *cli) preferencesCommand(user *string) *cobra.Command {
	var (
		enable, disable []string
		quiet           string
		quietStart      string
		quietEnd        string
	)
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change notification preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "notifications prefs", func(ctx context.Context, s *session) error {
				id, err := recipient(ctx, s, *user)
				if err != nil {
					return err
				}
				prefs := s.engine.Notifications.Preferences(ctx, id)
				changed := false
				for _, group := range []struct {
					names   []string
					enabled bool
				}{{enable, true}, {disable, false}} {
					parsed, err := parseNotificationTypes(group.names)
					if err != nil {
						return err
					}
					for _, t := range parsed {
						if err := prefs.SetType(t, group.enabled); err != nil {
							return err
						}
						changed = true
					}
				}
				switch strings.ToLower(strings.TrimSpace(quiet)) {
				case "":
				case "on":
					prefs.QuietHours.Enabled = true
					changed = true
				case "off":
					prefs.QuietHours.Enabled = false
					changed = true
				default:
					return fmt.Errorf("invalid --quiet value %q: want on or off", quiet)
				}
				if quietStart != "" {
					prefs.QuietHours.StartTime = quietStart
					changed = true
				}
				if quietEnd != "" {
					prefs.QuietHours.EndTime = quietEnd
					changed = true
				}
				if changed {
					if err := prefs.Validate(); err != nil {
						return domain.NewValidationError(err.Error())
					}
					if err := s.engine.Notifications.UpdatePreferences(ctx, id, prefs); err != nil {
						return err
					}
				}
				renderPreferences(cmd.OutOrStdout(), prefs)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "notification types to enable")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "notification types to disable")
	cmd.Flags().StringVar(&quiet, "quiet", "", "turn quiet hours on or off")
	cmd.Flags().StringVar(&quietStart, "quiet-start", "", "quiet hours start (HH:MM)")
	cmd.Flags().StringVar(&quietEnd, "quiet-end", "", "quiet hours end (HH:MM)")
	return cmd
}

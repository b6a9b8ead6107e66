package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/config"
	"github.com/hylla/mauflow/internal/domain"
)

func (c *cli) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show resolved config, data, and log locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.resolve()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", c.opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", c.opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", r.configPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", r.paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", r.cfg.Database.Path)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", r.paths.LogDir)
			return nil
		},
	}
}

func (c *cli) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.resolve()
			if err != nil {
				return err
			}
			if err := config.Save(r.configPath, r.cfg, force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", r.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.resolve()
			if err != nil {
				return err
			}
			raw, err := config.Encode(r.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func (c *cli) teamCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage team members and presence",
	}

	var name, email, role string
	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add or replace a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "team add", func(ctx context.Context, s *session) error {
				id := strings.TrimSpace(args[0])
				display := strings.TrimSpace(name)
				if display == "" {
					display = id
				}
				member, err := domain.NewTeamMember(id, display, email, domain.RoleName(role))
				if err != nil {
					return domain.NewValidationError(err.Error())
				}
				if err := s.engine.Directory.Upsert(ctx, member); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", member.ID, member.Role.Name)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "display name")
	addCmd.Flags().StringVar(&email, "email", "", "email address")
	addCmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "role: admin, manager, member, or viewer")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List team members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "team list", func(ctx context.Context, s *session) error {
				renderMembers(cmd.OutOrStdout(), s.engine.Directory.Members(ctx))
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "team remove", func(ctx context.Context, s *session) error {
				return s.engine.Directory.Remove(ctx, args[0])
			})
		},
	}

	presence := func(use string, online bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: "Mark a team member " + use,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withSession(cmd, "team "+use, func(ctx context.Context, s *session) error {
					return s.engine.Presence.SetOnline(ctx, args[0], online)
				})
			},
		}
	}

	useCmd := &cobra.Command{
		Use:   "use <id>",
		Short: "Store the acting user for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "team use", func(ctx context.Context, s *session) error {
				id := strings.TrimSpace(args[0])
				if _, ok := s.engine.Directory.Lookup(ctx, id); !ok {
					return domain.NewCollaborationError(domain.KindUserNotFound, "team member "+id+" not found", domain.ErrUserNotFound)
				}
				if err := s.engine.Store.SetCurrentUserID(ctx, id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "acting as %s\n", id)
				return nil
			})
		},
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the acting user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "team whoami", func(ctx context.Context, s *session) error {
				u, err := s.engine.Directory.CurrentUser(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", u.ID, u.Name, u.Role.Name)
				return nil
			})
		},
	}

	cmd.AddCommand(addCmd, listCmd, removeCmd, presence("online", true), presence("offline", false), useCmd, whoamiCmd)
	return cmd
}

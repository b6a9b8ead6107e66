package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/app"
	"github.com/hylla/mauflow/internal/domain"
)

func (c *cli) delegateCommand() *cobra.Command {
	var note, priority, title string
	cmd := &cobra.Command{
		Use:   "delegate <task-id> <assignee-id>",
		Short: "Hand a task to a team member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, "delegate", func(ctx context.Context, s *session) error {
				res, err := s.engine.Delegations.DelegateTask(ctx, app.DelegateTaskInput{
					TaskID:     args[0],
					AssigneeID: args[1],
					Note:       note,
					Priority:   domain.DelegationPriority(priority),
					TaskTitle:  title,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, w := range res.Warnings {
					_, _ = fmt.Fprintf(out, "warning: %s\n", w)
				}
				if res.Superseded != nil {
					_, _ = fmt.Fprintf(out, "superseded %s (was %s)\n", res.Superseded.ID, res.Superseded.AssigneeID)
				}
				_, _ = fmt.Fprintf(out, "delegated %s to %s: %s\n", res.Delegation.TaskID, res.Delegation.AssigneeID, res.Delegation.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note for the assignee")
	cmd.Flags().StringVar(&priority, "priority", string(domain.DelegationPriorityNormal), "normal or urgent")
	cmd.Flags().StringVar(&title, "title", "", "task title used in notification text")
	return cmd
}

func (c *cli) revokeCommand() *cobra.Command {
	return c.transitionCommand("revoke", "Revoke an active delegation", func(ctx context.Context, s *session, id string) (domain.TaskDelegation, error) {
		return s.engine.Delegations.RevokeDelegation(ctx, id)
	})
}

func (c *cli) completeCommand() *cobra.Command {
	return c.transitionCommand("complete", "Complete an active delegation", func(ctx context.Context, s *session, id string) (domain.TaskDelegation, error) {
		return s.engine.Delegations.CompleteDelegation(ctx, id)
	})
}

func (c *cli) transitionCommand(name, short string, fn func(context.Context, *session, string) (domain.TaskDelegation, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <delegation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, name, func(ctx context.Context, s *session) error {
				d, err := fn(ctx, s, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", d.Status, d.ID)
				return nil
			})
		},
	}
}

func (c *cli) delegationsCommand() *cobra.Command {
	var (
		filter domain.DelegationFilter
		mine   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "delegations",
		Short: "List delegations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "delegations", func(ctx context.Context, s *session) error {
				var (
					list []domain.TaskDelegation
					err  error
				)
				switch mine {
				case "":
					list = s.engine.Delegations.List(ctx, filter)
				case "created":
					list, err = s.engine.Delegations.MineCreated(ctx)
				case "assigned":
					list, err = s.engine.Delegations.MineAssigned(ctx)
				default:
					return fmt.Errorf("invalid --mine value %q: want created or assigned", mine)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				renderDelegations(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.TaskID, "task", "", "only delegations for this task")
	cmd.Flags().StringVar(&filter.AssigneeID, "assignee", "", "only delegations to this member")
	cmd.Flags().StringVar(&filter.DelegatorID, "delegator", "", "only delegations from this member")
	cmd.Flags().BoolVar(&filter.ActiveOnly, "active", false, "only active delegations")
	cmd.Flags().StringVar(&mine, "mine", "", "created or assigned, relative to the acting user")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/tui"
)

// program is the part of a bubbletea program the inbox command drives.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the interactive program; tests swap it for a stub.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func (c *cli) inboxCommand() *cobra.Command {
	var (
		forUser  string
		connect  bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Open the interactive notification inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, "inbox", func(ctx context.Context, s *session) error {
				userID, err := recipient(ctx, s, forUser)
				if err != nil {
					return err
				}
				// The inbox owns the terminal; keep logs in the dev file only.
				s.logger.SetConsoleEnabled(false)
				defer s.logger.SetConsoleEnabled(true)

				engine := s.engine
				if connect {
					engine.Delivery.Connect()
				}
				m := tui.NewModel(engine.Notifications, userID,
					tui.WithChannel(engine.Delivery),
					tui.WithThreads(engine.Comments),
					tui.WithNames(func(id string) string { return engine.Directory.DisplayName(ctx, id) }),
					tui.WithSimulationInterval(interval),
				)
				s.logger.Info("starting tui program loop", "user_id", userID)
				if _, err := programFactory(m).Run(); err != nil {
					s.logger.Error("tui program terminated with error", "err", err)
					return fmt.Errorf("run tui program: %w", err)
				}
				engine.Delivery.StopSimulation()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&forUser, "for", "", "inbox owner (defaults to the acting user)")
	cmd.Flags().BoolVar(&connect, "connect", false, "connect the delivery channel on start")
	cmd.Flags().DurationVar(&interval, "interval", 0, "base simulation interval (defaults to notifications.simulation_interval)")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hylla/mauflow/internal/app"
)

func (c *cli) simulateCommand() *cobra.Command {
	var (
		forUser  string
		count    int
		interval time.Duration
		presence bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Connect the delivery channel and push simulated notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be >= 1, got %d", count)
			}
			return c.withSession(cmd, "simulate", func(ctx context.Context, s *session) error {
				id, err := recipient(ctx, s, forUser)
				if err != nil {
					return err
				}
				return runSimulation(ctx, cmd, s.engine, id, count, interval, presence)
			})
		},
	}
	cmd.Flags().StringVar(&forUser, "for", "", "recipient id (defaults to the acting user)")
	cmd.Flags().IntVar(&count, "count", 1, "stop after this many notifications")
	cmd.Flags().DurationVar(&interval, "interval", 0, "base interval between notifications (defaults to notifications.simulation_interval)")
	cmd.Flags().BoolVar(&presence, "presence", false, "also toggle member presence while running")
	return cmd
}

// runSimulation prints each delivered notification and status change until count notifications
// have arrived for userID or ctx ends.
func runSimulation(ctx context.Context, cmd *cobra.Command, engine *app.Engine, userID string, count int, interval time.Duration, presence bool) error {
	out := cmd.OutOrStdout()
	delivered := make(chan app.NotificationEvent, count)
	unsubscribe := engine.Events.Notifications.Subscribe(func(ev app.NotificationEvent) {
		if ev.Notification.RecipientID != userID {
			return
		}
		select {
		case delivered <- ev:
		default:
		}
	})
	defer unsubscribe()

	statuses := make(chan app.ConnectionStatus, 8)
	stopStatus := engine.Delivery.Subscribe(ctx, userID, func(snap app.DeliverySnapshot) {
		select {
		case statuses <- snap.Status:
		default:
		}
	})
	defer stopStatus()

	if presence {
		engine.Presence.Start()
		defer engine.Presence.Stop()
	}
	engine.Delivery.Connect()
	engine.Delivery.StartSimulation(userID, interval)
	defer engine.Delivery.StopSimulation()

	last := app.ConnectionStatus("")
	for got := 0; got < count; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case status := <-statuses:
			if status != last {
				last = status
				_, _ = fmt.Fprintf(out, "status: %s\n", status)
			}
		case ev := <-delivered:
			got++
			n := ev.Notification
			_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", n.Type, n.Title, n.Message)
		}
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"pmgmt/pkg/bus"
	"pmgmt/pkg/config"
)

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published pmgmt events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newEventsTailCommand())
	return cmd
}

func newEventsTailCommand() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print new events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is not set")
			}
			if err := bus.CheckSubject(subject, true); err != nil {
				return err
			}

			b, err := bus.New(cfg.NATSURL, nats.Name(serviceName+"-tail"))
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			defer b.Close()

			sub, err := b.Subscribe(ctx, subject, "", eventPrinter(cmd.OutOrStdout()))
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", subject, err)
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", bus.StreamSubjects, "Subject filter within "+bus.StreamSubjects)
	return cmd
}

// eventPrinter writes one "<subject> <payload>" line per message.
func eventPrinter(w io.Writer) func(context.Context, string, []byte) error {
	var mu sync.Mutex
	return func(_ context.Context, subject string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(w, "%s %s\n", subject, data)
		return err
	}
}

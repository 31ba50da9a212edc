package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atelier-labs/hypothesis-runner/internal/scheduler"
)

var (
	admitLoop   bool
	admitConfig string
)

var admitCmd = &cobra.Command{
	Use:   "admit",
	Short: "Admit queued runs into free concurrency slots",
	Long:  `Run one admission pass, promoting queued runs until all slots are occupied or the queue is empty. With --loop, keep polling at the configured interval.`,
	RunE:  runAdmit,
}

func init() {
	admitCmd.Flags().BoolVar(&admitLoop, "loop", false, "Keep polling instead of exiting after one pass")
	admitCmd.Flags().StringVar(&admitConfig, "config", "", "Path to JSON config file")
	rootCmd.AddCommand(admitCmd)
}

func runAdmit(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig(admitConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	loop := scheduler.NewLoop(svc, cfg.PollInterval())
	if admitLoop {
		err := loop.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	}

	if err := loop.Tick(ctx); err != nil {
		return err
	}
	fmt.Println("Admission pass complete")
	return nil
}

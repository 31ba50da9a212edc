package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	submitHypothesis string
	submitConfig     string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new run for a hypothesis",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitHypothesis, "hypothesis", "", "Hypothesis UUID (required)")
	submitCmd.Flags().StringVar(&submitConfig, "config", "", "Path to JSON config file")
	_ = submitCmd.MarkFlagRequired("hypothesis")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(_ *cobra.Command, _ []string) error {
	hypothesisID, err := uuid.Parse(submitHypothesis)
	if err != nil {
		return fmt.Errorf("invalid hypothesis id: %w", err)
	}

	cfg, err := loadConfig(submitConfig)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := svc.Submit(ctx, hypothesisID)
	if err != nil {
		return err
	}
	fmt.Printf("Submitted run %s (status %s)\n", run.ID, run.Status)
	return nil
}

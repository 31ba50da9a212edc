// Package main provides the entry point for the run orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "run_orchestrator",
	Short: "Research run orchestration service",
	Long:  "run_orchestrator admits hypothesis runs into limited concurrency slots, drives their validation lifecycle, and exposes a REST API for cancel, retry, and verdict submission.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

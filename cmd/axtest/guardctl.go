package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/axtest/pkg/guard"
)

var guardStatePath string

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Clear the interference pause and let mutating actions continue",
	RunE:  runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	g := guard.New(nil, guardStatePath)
	wasPaused, err := g.Resume()
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if wasPaused {
		fmt.Println("✓ resumed")
	} else {
		fmt.Println("✓ already running")
	}
	return nil
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Interference pause operations",
}

var pauseInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show why the harness is paused",
	RunE:  runPauseInfo,
}

func runPauseInfo(cmd *cobra.Command, args []string) error {
	g := guard.New(nil, guardStatePath)
	paused, st, err := g.Paused()
	if err != nil {
		return fmt.Errorf("read guard state: %w", err)
	}
	if !paused {
		fmt.Println("running")
		return nil
	}
	fmt.Println("paused")
	fmt.Printf("  Reason:  %s\n", st.Reason)
	if st.Command != "" {
		fmt.Printf("  Command: %s\n", st.Command)
	}
	if st.Detail != "" {
		fmt.Printf("  Detail:  %s\n", st.Detail)
	}
	if !st.PausedAt.IsZero() {
		fmt.Printf("  Since:   %s\n", st.PausedAt.Format(time.RFC3339))
	}
	return nil
}

func init() {
	resumeCmd.Flags().StringVar(&guardStatePath, "guard-state", defaultGuardState(), "Guard state file")
	pauseInfoCmd.Flags().StringVar(&guardStatePath, "guard-state", defaultGuardState(), "Guard state file")
	pauseCmd.AddCommand(pauseInfoCmd)

	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(pauseCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/switching"
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation cycle and exit",
		Long:  "Restores the last persisted pairing, runs a single cycle against the configured data directory and prints the ranking and decision",
		RunE:  runEvaluate,
	}
	cmd.Flags().Duration("timeout", 0, "Cycle timeout (default: scheduler timeout)")
	cmd.Flags().Bool("json", false, "Print the full cycle result as JSON")
	cmd.Flags().Int("top", 10, "Number of ranked pairs to print")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.Scheduler.Timeout
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	top, _ := cmd.Flags().GetInt("top")

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a.restore(ctx)
	res := a.controller.RunCycle(ctx)

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printCycle(cmd.OutOrStdout(), res, top)
	return nil
}

func printCycle(w io.Writer, res switching.CycleResult, top int) {
	fmt.Fprintf(w, "Cycle %s  outcome=%s  duration=%s\n", res.ID, res.Outcome, res.Duration.Round(time.Millisecond))

	if len(res.Ranking) > 0 {
		fmt.Fprintf(w, "\n%-4s %-20s %-10s %9s %9s %9s\n", "#", "STRATEGY", "INSTRUMENT", "COMPOSITE", "PROFIT", "FIT")
		for i, ps := range res.Ranking {
			if top > 0 && i >= top {
				break
			}
			fmt.Fprintf(w, "%-4d %-20s %-10s %9.3f %9.3f %9.3f\n",
				i+1, ps.StrategyID, ps.Instrument, ps.Composite, ps.Breakdown.Profitability, ps.Breakdown.MarketFit)
		}
	}

	if len(res.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped %d pair(s):\n", len(res.Skipped))
		for _, sp := range res.Skipped {
			fmt.Fprintf(w, "  %s@%s: %s\n", sp.StrategyID, sp.Instrument, sp.Reason)
		}
	}

	if res.Decision != nil {
		fmt.Fprintf(w, "\n%s\n", res.Decision.Message())
	}
}

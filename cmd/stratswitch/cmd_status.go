package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/infrastructure/httpclient"
	"github.com/sawpanic/stratswitch/internal/interfaces/http/handlers"
	"github.com/sawpanic/stratswitch/internal/switching"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the live pairing of a running service",
		RunE:  runStatus,
	}
	addServiceFlags(cmd.Flags())
	return cmd
}

func newSwitchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "switches",
		Short: "List recent switch decisions of a running service",
		RunE:  runSwitches,
	}
	addServiceFlags(cmd.Flags())
	cmd.Flags().Int("limit", 10, "Number of decisions to list")
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	base, err := serviceURL(cmd)
	if err != nil {
		return err
	}

	var st switching.Status
	if err := httpclient.New(base, httpclient.DefaultConfig()).GetJSON(cmd.Context(), "/status", &st); err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), st)
	return nil
}

func runSwitches(cmd *cobra.Command, args []string) error {
	base, err := serviceURL(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	var resp handlers.SwitchesResponse
	client := httpclient.New(base, httpclient.DefaultConfig())
	if err := client.GetJSON(cmd.Context(), "/switches?limit="+strconv.Itoa(limit), &resp); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.Count == 0 {
		fmt.Fprintln(out, "No switches recorded")
		return nil
	}
	for _, d := range resp.Switches {
		fmt.Fprintf(out, "%s  %s\n", d.Timestamp.Format(time.RFC3339), d.Message())
	}
	return nil
}

func printStatus(w io.Writer, st switching.Status) {
	if !st.Active {
		fmt.Fprintln(w, "Pairing:     none (no strategy selected yet)")
	} else {
		fmt.Fprintf(w, "Pairing:     %s\n", st.Pairing)
		fmt.Fprintf(w, "Last switch: %s\n", st.LastSwitch.Format(time.RFC3339))
	}
	if st.InCooldown {
		fmt.Fprintf(w, "Cooldown:    %s remaining\n", st.CooldownRemaining.Round(time.Minute))
	} else {
		fmt.Fprintln(w, "Cooldown:    inactive")
	}
	fmt.Fprintf(w, "Switches:    %d total, %d logged\n", st.TotalSwitches, st.LogLength)
	fmt.Fprintf(w, "Instruments: %v\n", st.MonitoredInstruments)
	fmt.Fprintf(w, "Strategies:  %v\n", st.TestStrategies)
	if st.LastCycle != nil {
		fmt.Fprintf(w, "Last cycle:  %s (%s)\n", st.LastCycle.Outcome, st.LastCycle.ID)
	}
}

// addServiceFlags registers the flags shared by commands that talk to a
// running service.
func addServiceFlags(fs *pflag.FlagSet) {
	fs.String("addr", "", "Service address host:port (default: http config)")
}

func serviceURL(cmd *cobra.Command) (string, error) {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return "", err
		}
		addr = cfg.HTTP.Addr()
	}
	return "http://" + addr, nil
}

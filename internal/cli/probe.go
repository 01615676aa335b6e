package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"p2pchat/internal/domain"
	"p2pchat/internal/transport"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe HOST:PORT",
	Short: "Check whether a node accepts connections",
	Long:  `Connect to a node and hang up immediately, the same check the maintenance loop uses.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, err := domain.ParseAddress(args[0])
	if err != nil {
		return err
	}

	prober := transport.NewProber(cfg.Maintenance.ProbeTimeout.Duration)
	if err := prober.Probe(cmd.Context(), target); err != nil {
		return fmt.Errorf("%s is not reachable: %w", target, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", target)
	return nil
}

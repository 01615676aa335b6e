package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"p2pchat/internal/domain"
	"p2pchat/internal/netutil"
	"p2pchat/internal/transport"
	"p2pchat/internal/wire"
)

func init() {
	sendCmd.Flags().StringVar(&sendName, "name", "", "Display name (overrides config)")
	sendCmd.Flags().StringVar(&sendHost, "host", "", "Host to advertise in the header (overrides config)")
	sendCmd.Flags().IntVar(&sendPort, "port", 0, "Port to advertise in the header (overrides config)")
	rootCmd.AddCommand(sendCmd)
}

var (
	sendName string
	sendHost string
	sendPort int
)

var sendCmd = &cobra.Command{
	Use:   "send HOST:PORT MESSAGE...",
	Short: "Send one message without starting a node",
	Long: `Send one message to a node. The header advertises the configured
name, host and port, so the receiver learns that address as a peer even
though nothing is listening on it during this command.

A config with node.port = 0 binds an ephemeral port when running a node,
but send has no listener to take one from: pass --port in that case.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sendName != "" {
		cfg.Node.Name = sendName
	}
	if sendHost != "" {
		cfg.Node.Host = sendHost
	}
	if sendPort > 0 {
		cfg.Node.Port = sendPort
	}

	target, err := domain.ParseAddress(args[0])
	if err != nil {
		return err
	}

	if cfg.Node.Port == 0 {
		return errors.New("send needs a port to advertise: node.port is 0, pass --port")
	}

	host := cfg.Node.Host
	if host == "" {
		host = netutil.LocalIP()
	}
	id := domain.Identity{Name: cfg.Node.Name, Listen: domain.Address{Host: host, Port: cfg.Node.Port}}
	if err := id.Validate(); err != nil {
		return fmt.Errorf("sender identity: %w", err)
	}

	framer, err := wire.NewFramer(cfg.Wire.Framing)
	if err != nil {
		return err
	}

	sender := transport.NewSender(framer, cfg.Node.SendTimeout.Duration)
	if err := sender.Send(cmd.Context(), target, id, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Message sent to %s\n", target)
	return nil
}

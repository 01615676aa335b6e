package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"p2pchat/internal/api"
	"p2pchat/internal/config"
	"p2pchat/internal/domain"
	"p2pchat/internal/node"
	"p2pchat/internal/notify"
	"p2pchat/internal/ui"
	"p2pchat/internal/wire"
)

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "Display name (overrides config)")
	runCmd.Flags().StringVar(&runHost, "host", "", "Host to bind and advertise (overrides config)")
	runCmd.Flags().IntVar(&runPort, "port", 0, "Port to listen on, 0 = auto-assign (overrides config)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Use the full-screen terminal UI")
	runCmd.Flags().BoolVar(&runAPI, "api", false, "Enable the HTTP control API")
	runCmd.Flags().StringArrayVar(&runPeers, "peer", nil, "Peer to connect to at startup, host:port (repeatable)")
	rootCmd.AddCommand(runCmd)
}

var (
	runName  string
	runHost  string
	runPort  int
	runTUI   bool
	runAPI   bool
	runPeers []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a chat node",
	Long: `Start a chat node and open the interactive menu (or the TUI with --tui).
The node listens for messages, learns peers from message headers and
periodically drops peers that no longer accept connections.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if runName != "" {
		cfg.Node.Name = runName
	}
	if runHost != "" {
		cfg.Node.Host = runHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Node.Port = runPort
	}
	if runTUI {
		cfg.UI.Mode = config.ModeTUI
	}
	if runAPI {
		cfg.API.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	framer, err := wire.NewFramer(cfg.Wire.Framing)
	if err != nil {
		return err
	}

	n, err := node.New(nodeOptions(cfg, framer, logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, cancelEvents := n.Subscribe(256)
	defer cancelEvents()
	n.Start(ctx)

	var notifier ui.Notifier
	if cfg.UI.NotifySound != "" {
		sound, err := notify.NewSound(cfg.UI.NotifySound, logger)
		if err != nil {
			logger.Printf("[cli] notification sound disabled: %v", err)
		} else {
			notifier = sound
		}
	}

	if cfg.API.Enabled {
		srv := api.NewServer(n, logger)
		if cfg.API.Metrics {
			srv.EnableMetrics()
		}
		addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
		go func() {
			if err := srv.Serve(ctx, addr); err != nil {
				logger.Printf("[api] server error: %v", err)
			}
		}()
	}

	connectInitialPeers(ctx, n, runPeers, logger)

	switch cfg.UI.Mode {
	case config.ModeTUI:
		err = runTUIMode(ctx, n, events, notifier)
	default:
		err = runMenuMode(ctx, cmd, n, events, notifier)
	}

	n.Shutdown()
	n.Wait()
	return err
}

func connectInitialPeers(ctx context.Context, n *node.Node, peers []string, logger *log.Logger) {
	for _, raw := range peers {
		addr, err := domain.ParseAddress(raw)
		if err != nil {
			logger.Printf("[cli] skipping peer %q: %v", raw, err)
			continue
		}
		if err := n.ConnectToPeer(ctx, addr.Host, addr.Port); err != nil {
			logger.Printf("[cli] initial connect to %s failed: %v", addr, err)
		}
	}
}

func runTUIMode(ctx context.Context, n *node.Node, events <-chan domain.Event, notifier ui.Notifier) error {
	model := ui.NewTUI(ctx, n, events)
	if notifier != nil {
		model.SetNotifier(notifier)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func runMenuMode(ctx context.Context, cmd *cobra.Command, n *node.Node, events <-chan domain.Event, notifier ui.Notifier) error {
	menu := ui.NewMenu(n, cmd.InOrStdin(), cmd.OutOrStdout())
	if notifier != nil {
		menu.SetNotifier(notifier)
	}
	go menu.Watch(events)

	done := make(chan error, 1)
	go func() { done <- menu.Run(ctx) }()

	// A blocked stdin read cannot be interrupted, so a signal ends the
	// command without waiting for the menu goroutine.
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "\nExiting...")
		return nil
	}
}

package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"p2pchat/internal/config"
	"p2pchat/internal/node"
	"p2pchat/internal/wire"
)

// loadConfig reads the --config file or the default one.
func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}

// resolvedConfigPath is where config init and show operate.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.Path()
}

// openLogger returns a logger writing to the configured file, or to stderr.
func openLogger(cfg config.Config) (*log.Logger, io.Closer, error) {
	flags := log.LstdFlags
	if cfg.Logging.Debug {
		flags |= log.Lmicroseconds | log.Lshortfile
	}

	path := cfg.LogFile()
	if path == "" {
		return log.New(os.Stderr, "", flags), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.New(f, "", flags), f, nil
}

func nodeOptions(cfg config.Config, framer wire.Framer, logger *log.Logger) node.Options {
	return node.Options{
		Name:              cfg.Node.Name,
		Host:              cfg.Node.Host,
		Port:              cfg.Node.Port,
		Framer:            framer,
		SendTimeout:       cfg.Node.SendTimeout.Duration,
		ReadTimeout:       cfg.Node.ReadTimeout.Duration,
		ProbeInterval:     cfg.Maintenance.Interval.Duration,
		ProbeTimeout:      cfg.Maintenance.ProbeTimeout.Duration,
		MaxParallelProbes: cfg.Maintenance.MaxParallelProbes,
		Logger:            logger,
	}
}

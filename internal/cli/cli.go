// Package cli implements the crystalcache command-line interface.
//
// The CLI drives the catalog clients from a terminal: warming caches,
// fetching endpoints through the cache, printing statistics and validating
// the runtime environment. Logging goes through slog with a
// charmbracelet/log handler.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/deeplooplabs/crystalcache/client"
	"github.com/deeplooplabs/crystalcache/config"
	"github.com/deeplooplabs/crystalcache/manager"
)

const appName = "crystalcache"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

var version = "dev"

// SetVersion sets the version shown by --version
func SetVersion(v string) {
	version = v
}

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	out    io.Writer

	envFiles    []string
	clientsFile string
	baseURL     string
}

// New creates a CLI that prints results to out and logs to logOut
func New(out, logOut io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(logOut, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		out: out,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// structured returns a slog logger backed by the charm logger
func (c *CLI) structured() *slog.Logger {
	return slog.New(c.Logger)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "crystalcache drives the cached catalog API clients",
		Long:         `crystalcache warms, inspects and clears the response caches of the crystal catalog API clients.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(c.envFiles...)
			if err != nil {
				return err
			}
			for _, file := range loaded {
				c.Logger.Debug("loaded env file", "file", file)
			}
			// LOG_LEVEL can only make logging more verbose than the flags
			if lvl, err := log.ParseLevel(config.FromEnv().LogLevel); err == nil && c.Logger.GetLevel() > lvl {
				c.SetLogLevel(lvl)
			}
			return nil
		},
	}

	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load (default .env.local, .env.production, .env)")
	root.PersistentFlags().StringVar(&c.clientsFile, "clients", "", "TOML file declaring clients and warm-up targets")
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", "", "override API_BASE_URL")

	root.AddCommand(c.warmUpCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.getCommand())
	root.AddCommand(c.clearCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.envCommand())

	return root
}

// session is an opened manager plus the warm-up batch that goes with it
type session struct {
	*manager.Manager
	warmUp []manager.Target
}

// open builds the manager described by the environment and --clients
func (c *CLI) open(ctx context.Context) (*session, error) {
	env := config.FromEnv()
	baseURL := env.APIBaseURL
	if c.baseURL != "" {
		baseURL = c.baseURL
	}

	defs := config.DefaultClients()
	targets := manager.DefaultWarmUp()
	if c.clientsFile != "" {
		file, err := config.LoadClients(c.clientsFile)
		if err != nil {
			return nil, err
		}
		defs = file.Clients
		targets = nil
		for _, w := range file.WarmUp {
			targets = append(targets, manager.Target{Client: w.Client, Endpoint: w.Endpoint, Params: w.Params})
		}
	}

	stores, err := manager.OpenStores(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("open cache storage: %w", err)
	}

	logger := c.structured()
	m, err := manager.Build(baseURL, defs, stores,
		[]manager.Option{manager.WithLogger(logger), manager.WithCloser(stores.Close)},
		client.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("clients ready", "base_url", baseURL, "clients", m.Names())
	return &session{Manager: m, warmUp: targets}, nil
}

// withSession opens a session for the duration of fn
func (c *CLI) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			c.Logger.Warn("close failed", "error", err)
		}
	}()
	return fn(s)
}

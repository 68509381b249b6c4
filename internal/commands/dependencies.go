package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/diogo/studychat/internal/api"
	"github.com/diogo/studychat/internal/config"
	"github.com/diogo/studychat/internal/conversation"
	"github.com/diogo/studychat/internal/logging"
	"github.com/diogo/studychat/internal/tui"
)

// Dependencies holds the external dependencies for the commands.
// Tests replace them with mocks.
type Dependencies struct {
	// LoadConfig returns the effective configuration
	LoadConfig func() (config.Config, error)

	// NewClient builds the API client for the effective configuration
	NewClient func(cfg config.Config, logger *slog.Logger) (api.ClientInterface, error)

	// RunTUI runs the interactive chat
	RunTUI func(ctx context.Context, backend tui.Backend, controller *conversation.Controller, opts tui.Options) error

	// IsTTY reports whether stdout is a terminal
	IsTTY func() bool

	// Logger, when set, is used instead of the configured log file
	Logger *slog.Logger
}

// NewDependencies creates a Dependencies struct with the production implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		LoadConfig: config.LoadConfig,
		NewClient:  newAPIClient,
		RunTUI:     tui.Run,
		IsTTY:      isStdoutTTY,
	}
}

func newAPIClient(cfg config.Config, logger *slog.Logger) (api.ClientInterface, error) {
	client, err := api.NewClient(
		api.WithServerURL(cfg.ServerURL),
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	server  string
	verbose bool
}

// env is what a command needs to talk to the server
type env struct {
	cfg    config.Config
	logger *slog.Logger
	client api.ClientInterface
	closer io.Closer
}

// setup loads the config, applies the global flags, and opens the logger
// and the client. Callers must Close the env.
func (d *Dependencies) setup(flags *globalFlags) (*env, error) {
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.server != "" {
		if err := config.ValidateServerURL(flags.server); err != nil {
			return nil, fmt.Errorf("invalid --server: %w", err)
		}
		cfg.ServerURL = flags.server
	}
	if flags.verbose {
		cfg.Verbose = true
	}

	e := &env{cfg: cfg, logger: d.Logger}
	if e.logger == nil {
		logger, closer, err := logging.New(logging.Options{
			Level:   cfg.LogLevel,
			Verbose: cfg.Verbose,
			File:    cfg.LogFile,
		})
		if err != nil {
			return nil, err
		}
		e.logger, e.closer = logger, closer
	}

	client, err := d.NewClient(cfg, e.logger)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	e.client = client
	return e, nil
}

// Close releases the client and the log file
func (e *env) Close() {
	if e.client != nil {
		e.client.Close()
	}
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

// controller returns a conversation controller over the env client
func (e *env) controller() *conversation.Controller {
	return conversation.NewController(conversation.NewState(e.logger), e.client, e.logger)
}

// withEnv wraps a command body with setup and teardown
func withEnv(deps *Dependencies, flags *globalFlags, run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := deps.setup(flags)
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd, args, e)
	}
}

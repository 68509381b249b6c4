// Package commands provides CLI commands for studychat.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// reportedError marks an error that was already shown to the user
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// rootCmd represents the base command
var rootCmd = NewRootCmd(NewDependencies())

// NewRootCmd builds the command tree over deps
func NewRootCmd(deps *Dependencies) *cobra.Command {
	flags := &globalFlags{}
	ask := &askOptions{}

	cmd := &cobra.Command{
		Use:   "studychat [message]",
		Short: "Chat with your study assistant",
		Long: `studychat talks to a study assistant server that answers questions
about your ingested study material. Replies are streamed as they are
generated.

Examples:
  studychat chat                          Start interactive chat
  studychat "What is osmosis?"            Ask in the default topic
  studychat -t Biology "What is a cell?"  Ask in a topic by name
  cat notes.md | studychat -t 2           Read the message from stdin
  studychat topics list                   List topics
  studychat config set server_url http://localhost:8000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintf(cmd.OutOrStdout(), "studychat %s (built %s)\n", Version, BuildTime)
				return nil
			}

			message, err := readMessage(cmd, args, ask.file)
			if err != nil {
				return err
			}
			if message == "" {
				return cmd.Help()
			}
			return runAsk(cmd, deps, flags, ask, message)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.server, "server", "s", "", "Server URL (overrides server_url)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "V", false, "Debug logging and reply statistics")
	addAskFlags(cmd, ask)
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(
		newAskCmd(deps, flags),
		newChatCmd(deps, flags),
		newTopicsCmd(deps, flags),
		newIngestCmd(deps, flags),
		newHealthCmd(deps, flags),
		newConfigCmd(deps),
	)
	return cmd
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		}
		os.Exit(1)
	}
}

// readMessage returns the message from --file, the argument, or piped stdin
func readMessage(cmd *cobra.Command, args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

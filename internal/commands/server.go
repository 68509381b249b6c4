package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Ask the server to re-index the study material",
		Args:  cobra.NoArgs,
		RunE: withEnv(deps, flags, func(cmd *cobra.Command, args []string, e *env) error {
			message, err := e.client.TriggerIngest(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to start ingestion: %w", err)
			}
			if message == "" {
				message = "Ingestion started."
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		}),
	}
}

func newHealthCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: withEnv(deps, flags, func(cmd *cobra.Command, args []string, e *env) error {
			status, err := e.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:    %s\n", e.client.ServerURL())
			fmt.Fprintf(out, "Status:    %s\n", status.Status)
			if status.Processor != "" {
				fmt.Fprintf(out, "Processor: %s\n", status.Processor)
			}
			if status.RAGStatus != "" {
				fmt.Fprintf(out, "RAG:       %s\n", status.RAGStatus)
			}
			if !status.OK() {
				return fmt.Errorf("server reported status %q", status.Status)
			}
			return nil
		}),
	}
}

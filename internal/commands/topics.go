package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/studychat/internal/history"
)

func newTopicsCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "topics",
		Aliases: []string{"topic"},
		Short:   "Manage conversation topics",
		Long: `List, create, show, delete and export the topics stored on the server.

` + history.ListAliases(),
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all topics",
			Args:  cobra.NoArgs,
			RunE:  withEnv(deps, flags, runTopicsList),
		},
		&cobra.Command{
			Use:   "new [name]",
			Short: "Create a topic",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withEnv(deps, flags, runTopicsNew),
		},
		&cobra.Command{
			Use:   "show <ref>",
			Short: "Show a topic transcript",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(deps, flags, runTopicsShow),
		},
		&cobra.Command{
			Use:   "delete <ref>",
			Short: "Delete a topic",
			Args:  cobra.ExactArgs(1),
			RunE:  withEnv(deps, flags, runTopicsDelete),
		},
		newTopicsExportCmd(deps, flags),
	)
	return cmd
}

func runTopicsList(cmd *cobra.Command, args []string, e *env) error {
	topics, err := e.client.ListTopics(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(topics) == 0 {
		fmt.Fprintln(out, "No topics found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tNAME\tPREVIEW")
	_, _ = fmt.Fprintln(w, "-\t--\t----\t-------")
	for i, t := range topics {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, t.ID, truncate(t.Name, 40), truncate(t.Preview, 50))
	}
	return w.Flush()
}

func runTopicsNew(cmd *cobra.Command, args []string, e *env) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	topic, err := e.client.CreateTopic(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created topic: %s (%s)\n", topic.Name, topic.ID)
	return nil
}

func runTopicsShow(cmd *cobra.Command, args []string, e *env) error {
	ctx := cmd.Context()
	info, err := history.NewResolver(e.client).Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	topic, err := e.client.GetTopic(ctx, info.ID)
	if err != nil {
		return fmt.Errorf("failed to load topic: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID: %s\n", topic.ID)
	fmt.Fprintf(out, "Name: %s\n", topic.Name)
	fmt.Fprintf(out, "Messages: %d\n", len(topic.Messages))
	fmt.Fprintln(out)

	for i, msg := range topic.Messages {
		role := "You"
		if msg.IsAssistant() {
			role = "Assistant"
		}
		fmt.Fprintf(out, "[%d] %s:\n", i+1, role)

		content := msg.Content
		if len([]rune(content)) > 500 {
			content = truncate(content, 500)
		}
		fmt.Fprintf(out, "  %s\n\n", content)
	}
	return nil
}

func runTopicsDelete(cmd *cobra.Command, args []string, e *env) error {
	ctx := cmd.Context()
	info, err := history.NewResolver(e.client).Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	message, err := e.client.DeleteTopic(ctx, info.ID)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if message == "" {
		message = "Topic deleted."
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s: %s)\n", message, info.ID, info.Name)
	return nil
}

func newTopicsExportCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	var output, format string

	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a topic transcript as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(deps, flags, func(cmd *cobra.Command, args []string, e *env) error {
			exportFormat := history.FormatFromPath(output)
			if format != "" {
				f, err := history.ParseExportFormat(format)
				if err != nil {
					return err
				}
				exportFormat = f
			}

			ctx := cmd.Context()
			info, err := history.NewResolver(e.client).Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			topic, err := e.client.GetTopic(ctx, info.ID)
			if err != nil {
				return fmt.Errorf("failed to load topic: %w", err)
			}

			data, err := history.Export(topic, exportFormat, time.Now())
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d messages to %s\n", len(topic.Messages), output)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "", "markdown or json (default from the output extension)")
	return cmd
}

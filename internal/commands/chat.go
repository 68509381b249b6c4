package commands

import (
	"github.com/spf13/cobra"

	"github.com/diogo/studychat/internal/render"
	"github.com/diogo/studychat/internal/tui"
)

func newChatCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the study assistant.

Replies stream into the conversation as they are generated. Type /help
inside the chat for topic commands, or /exit to leave.`,
		Args: cobra.NoArgs,
		RunE: withEnv(deps, flags, func(cmd *cobra.Command, args []string, e *env) error {
			ref := topic
			if ref == "" {
				ref = e.cfg.DefaultTopic
			}
			return deps.RunTUI(cmd.Context(), e.client, e.controller(), tui.Options{
				Topic:  ref,
				Render: render.FromConfig(e.cfg.Markdown, 80),
				Theme:  e.cfg.TUITheme,
				Logger: e.logger,
			})
		}),
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to open at startup")
	return cmd
}

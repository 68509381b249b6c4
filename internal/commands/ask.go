package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/diogo/studychat/internal/api"
	"github.com/diogo/studychat/internal/history"
	"github.com/diogo/studychat/internal/models"
	"github.com/diogo/studychat/internal/render"
)

type askOptions struct {
	topic     string
	createNew bool
	raw       bool
	output    string
	copy      bool
	file      string
}

func addAskFlags(cmd *cobra.Command, opts *askOptions) {
	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "Topic reference: index, name, id, @first or @last")
	cmd.Flags().BoolVarP(&opts.createNew, "new", "n", false, "Create a new topic (named by --topic) for this message")
	cmd.Flags().BoolVarP(&opts.raw, "raw", "r", false, "Print the raw reply without decoration")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save the reply to a file")
	cmd.Flags().BoolVarP(&opts.copy, "copy", "c", false, "Copy the reply to the clipboard")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the message from a file")
}

func newAskCmd(deps *Dependencies, flags *globalFlags) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Ask a question and stream the reply",
		Long: `Send one message to a topic and print the streamed reply.

Without --topic the default_topic setting is used; without either a new
topic is created. On a terminal the reply is rendered as markdown once it
completes; otherwise it is written to stdout as it arrives.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, err := readMessage(cmd, args, opts.file)
			if err != nil {
				return err
			}
			if message == "" {
				return fmt.Errorf("message cannot be empty")
			}
			return runAsk(cmd, deps, flags, opts, message)
		},
	}
	addAskFlags(cmd, opts)
	return cmd
}

// runAsk sends message and writes the reply
func runAsk(cmd *cobra.Command, deps *Dependencies, flags *globalFlags, opts *askOptions, message string) error {
	e, err := deps.setup(flags)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	decorated := !opts.raw && deps.IsTTY()

	topic, created, err := openTopic(ctx, e.client, opts, e.cfg.DefaultTopic)
	if err != nil {
		return err
	}
	if created && !opts.raw {
		fmt.Fprintln(errOut, dimStyle.Render(fmt.Sprintf("New topic: %s (%s)", topic.Name, topic.ID)))
	}

	controller := e.controller()
	controller.State().Activate(topic.ID, topic.Messages)

	var spin *spinner
	var stream *deltaWriter
	switch {
	case decorated:
		spin = newSpinner(errOut, "Waiting for reply")
		spin.start()
	case opts.output == "":
		stream = &deltaWriter{w: out}
	}

	start := time.Now()
	result, err := controller.Send(ctx, topic.ID, message, func(msgs []models.Message) {
		reply, ok := lastReply(msgs)
		if !ok {
			return
		}
		if spin != nil {
			spin.setMessage(fmt.Sprintf("Receiving reply (%d chars)", len(reply)))
		}
		if stream != nil {
			stream.update(reply)
		}
	})
	if err != nil {
		if spin != nil {
			spin.stopWithError()
		}
		return err
	}

	if result.Failed() {
		if spin != nil {
			spin.stopWithError()
		}
		if stream != nil {
			stream.newline()
		}
		fmt.Fprintln(errOut, formatErrorMessage(result.Err, "Reply failed"))
		return reportedError{result.Err}
	}

	text, _ := lastReply(controller.State().Messages())
	if spin != nil {
		spin.stopWithSuccess("Done")
	}
	if stream != nil {
		stream.finish(text)
	}

	if result.Degraded {
		fmt.Fprintln(errOut, warnStyle.Render("⚠ The stream ended early; the reply may be incomplete."))
	}
	if e.cfg.Verbose {
		fmt.Fprintf(errOut, "[verbose] topic %s, %d chunks, first chunk after %s, total %s\n",
			result.TopicID, result.Stats.Chunks,
			result.Stats.FirstChunk.Round(time.Millisecond),
			time.Since(start).Round(time.Millisecond))
	}

	if opts.copy || e.cfg.CopyToClipboard {
		if err := clipboard.WriteAll(text); err != nil {
			fmt.Fprintln(errOut, warnStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		} else if !opts.raw {
			fmt.Fprintln(errOut, successStyle.Render("✓ Copied to clipboard"))
		}
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !opts.raw {
			fmt.Fprintln(errOut, successStyle.Render(fmt.Sprintf("✓ Reply saved to %s", opts.output)))
		}
		return nil
	}

	if decorated {
		width := bubbleWidth(getTerminalWidth())
		rendered := render.Reply(text, render.FromConfig(e.cfg.Markdown, width-4))
		fmt.Fprintln(out, assistantLabelStyle.Render("✦ Assistant"))
		fmt.Fprintln(out, assistantBubbleStyle.Width(width).Render(rendered))
	}
	return nil
}

// openTopic picks the topic a one-shot message goes to. The second result
// reports whether the topic was created.
func openTopic(ctx context.Context, client api.ClientInterface, opts *askOptions, defaultRef string) (*models.Topic, bool, error) {
	if opts.createNew {
		topic, err := client.CreateTopic(ctx, opts.topic)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create topic: %w", err)
		}
		return topic, true, nil
	}

	ref := opts.topic
	if ref == "" {
		ref = defaultRef
	}
	if ref == "" {
		topic, err := client.CreateTopic(ctx, "")
		if err != nil {
			return nil, false, fmt.Errorf("failed to create topic: %w", err)
		}
		return topic, true, nil
	}

	info, err := history.NewResolver(client).Resolve(ctx, ref)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve topic: %w", err)
	}
	topic, err := client.GetTopic(ctx, info.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load topic: %w", err)
	}
	return topic, false, nil
}

// lastReply returns the content of the trailing assistant message unless
// it is an error placeholder.
func lastReply(msgs []models.Message) (string, bool) {
	if len(msgs) == 0 {
		return "", false
	}
	last := msgs[len(msgs)-1]
	if !last.IsAssistant() || last.Error {
		return "", false
	}
	return last.Content, true
}

// deltaWriter writes only the text appended since the previous update
type deltaWriter struct {
	w       io.Writer
	written string
}

func (d *deltaWriter) update(text string) {
	if !strings.HasPrefix(text, d.written) {
		return
	}
	if rest := text[len(d.written):]; rest != "" {
		_, _ = io.WriteString(d.w, rest)
		d.written = text
	}
}

func (d *deltaWriter) newline() {
	if d.written != "" && !strings.HasSuffix(d.written, "\n") {
		_, _ = io.WriteString(d.w, "\n")
		d.written += "\n"
	}
}

func (d *deltaWriter) finish(text string) {
	d.update(text)
	d.newline()
}

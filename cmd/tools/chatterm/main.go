package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/waychat/backend/internal/config"
	"github.com/zhouzirui/waychat/backend/internal/logging"
	"github.com/zhouzirui/waychat/backend/internal/model/profile"
	"github.com/zhouzirui/waychat/backend/internal/service/ai"
	"github.com/zhouzirui/waychat/backend/internal/service/chat"
	"github.com/zhouzirui/waychat/backend/internal/service/widget"
)

const chattermLongDesc string = `Chat with a WayChat profile from the terminal.

Each line you type is sent as one message. Type /exit to quit.

Examples:
  chatterm
  chatterm --profile waychat`

const exitCommand = "/exit"

type chattermCommander struct {
	profileID string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	cmder := &chattermCommander{}

	cmd := &cobra.Command{
		Use:   "chatterm",
		Short: "Terminal client for the WayChat assistant",
		Long:  chattermLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&cmder.profileID, "profile", "p", profile.DefaultID, "Profile to chat with")
	cmd.Flags().StringVar(&cmder.logLevel, "log-level", "warn", "Log level written to stderr")

	return cmd
}

func (c *chattermCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.New(c.logLevel, "console", os.Stderr)

	completer, err := ai.NewCompleter(ctx, cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("init completion provider: %w", err)
	}

	p, ok := profile.NewMemoryStore(profile.Seed()).FindByID(c.profileID)
	if !ok {
		return fmt.Errorf("unknown profile %q", c.profileID)
	}

	session := chat.NewSession(completer, p.SystemPrompt, chat.WithProfileID(p.ID), chat.WithLogger(logger))
	return converse(ctx, session, newTerminalView(out, p.Name), p.Greeting, in, out)
}

// converse feeds each input line to the widget until EOF or /exit.
func converse(ctx context.Context, session *chat.Session, view *terminalView, greeting string, in io.Reader, out io.Writer) error {
	w := widget.New(session, view)

	if greeting != "" {
		fmt.Fprintf(out, "%s\n\n", dimStyle.Render(greeting))
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, dimStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == exitCommand {
			return nil
		}

		w.SetInput(line)
		// Failures are already rendered as a failed reply.
		_ = w.Send(ctx)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

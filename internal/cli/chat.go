package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/postai/internal/pipeline"
)

const banner = `postai: talk to HTTP APIs through their Swagger/OpenAPI documents.
Paste a document URL to begin, type 'help' for commands, 'exit' to leave.`

// maxLineBytes bounds a single REPL line; pasted JSON bodies can be long.
const maxLineBytes = 1 << 20

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: "Start an interactive session. Each line is one turn: a document URL, a 'swagger ...' " +
			"command, a search, a request such as 'GET /users', or plain language.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.chat(cmd)
		},
	}
	return cmd
}

func (a *app) chat(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if addr := a.cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr, a.logger); err != nil {
				a.logger.Error("metrics server stopped", "addr", addr, "error", err)
			}
		}()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, banner)
	if a.cfg.LLM.Disabled {
		warnText.Fprintln(out, "Language model disabled: only explicit commands are understood.")
	}

	session := &pipeline.Session{}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for {
		printPrompt(out)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		turn := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(turn) {
		case "":
			continue
		case "exit", "quit", "종료":
			return nil
		}
		printMessages(out, a.pipeline.Handle(ctx, session, turn))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

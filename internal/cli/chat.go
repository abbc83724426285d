package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/spf13/cobra"
)

var chatPlain bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with the analytics middleware.

All questions of one chat share a conversation id. Type /quit or press
Ctrl+C to leave. When stdin is not a terminal, or with --plain, questions
are read line by line and answers are printed without styling.

Examples:
  datachat chat
  echo "total revenue by month" | datachat chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "line mode without the terminal UI")
}

func runChat(cmd *cobra.Command, args []string) error {
	s := newSession()
	defer s.Close()

	logger.Info("chat started", "conversation_id", s.ConversationID())
	defer logger.Info("chat ended", "conversation_id", s.ConversationID())

	if chatPlain || !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		r := newRenderer(!isTerminal(os.Stdout), 0)
		return runLineChat(context.Background(), s, cmd.InOrStdin(), cmd.OutOrStdout(), r)
	}
	return runChatUI(s)
}

// isQuit reports whether a line asks to leave the chat.
func isQuit(line string) bool {
	switch strings.TrimSpace(line) {
	case "/quit", "/exit":
		return true
	}
	return false
}

// runLineChat reads one question per line and prints each answer.
// Blank lines are skipped. Returns nil at end of input.
func runLineChat(ctx context.Context, s *session.Session, in io.Reader, out io.Writer, r renderer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if isQuit(line) {
			return nil
		}

		before := len(s.Messages())
		err := s.SendMessage(ctx, line)
		if errors.Is(err, session.ErrBlankQuery) {
			continue
		}
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}

		// Skip the echoed question; print what the turn added after it.
		msgs := s.Messages()
		for _, m := range msgs[before+1:] {
			if _, err := fmt.Fprintln(out, r.message(m)); err != nil {
				return err
			}
		}
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

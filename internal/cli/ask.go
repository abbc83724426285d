package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/raphaelgruber/datachat/internal/session"
	"github.com/spf13/cobra"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask one question and print the answer",
	Long: `Ask a single question in a fresh conversation and print the answer text,
the generated SQL and the chart data.

Examples:
  datachat ask "What were total sales by category last month?"
  datachat ask "Top 10 customers by revenue" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the assistant message as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	s := newSession()
	defer s.Close()

	r := newRenderer(!isTerminal(os.Stdout), 0)
	return askOnce(context.Background(), s, args[0], cmd.OutOrStdout(), r, askJSON)
}

// askOnce runs one turn and writes the assistant message to out.
func askOnce(ctx context.Context, s *session.Session, query string, out io.Writer, r renderer, asJSON bool) error {
	if err := s.SendMessage(ctx, query); err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	msgs := s.Messages()
	answer := msgs[len(msgs)-1]

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	_, err := fmt.Fprintln(out, r.message(answer))
	return err
}

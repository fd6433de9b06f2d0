package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ppiankov/qbot/internal/conversation"
	"github.com/ppiankov/qbot/internal/model"
)

var (
	askTimeout       time.Duration
	showIntermediate bool
	saveSession      bool
)

// askCmd answers a single question
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the cited answer",
	Long: `Ask runs one question through the action loop:
- The model searches verses, reads context and browses themes
- Each lookup result is fed back to the model
- The final answer is printed with the text of every cited verse

Example:
  qbot ask "What does the Quran say about Moses?"
  qbot ask "Which verses mention patience?" --show-intermediate
  qbot ask "Who was Pharaoh?" --llm anthropic --model claude-3-5-haiku-latest`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().DurationVar(&askTimeout, "timeout", 5*time.Minute, "overall timeout for the question")
	askCmd.Flags().BoolVar(&showIntermediate, "show-intermediate", false, "print model actions and lookup results")
	askCmd.Flags().BoolVar(&saveSession, "save", false, "save the conversation to the session archive")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	return withApp(ctx, func(a *app) error {
		asst, _, err := a.assistant(showIntermediate)
		if err != nil {
			return err
		}

		s := conversation.NewSession()
		out := cmd.OutOrStdout()

		start := len(s.Messages)
		turn, askErr := asst.Ask(ctx, s, question)
		printMessages(out, s.Messages[start:])

		if saveSession {
			if err := saveToArchive(a.cfg, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved session %s\n", s.ID)
		}

		if askErr != nil {
			return askErr
		}
		if turn.Exhausted {
			return errors.New("no answer within the action limit; try rephrasing the question")
		}
		return nil
	})
}

var (
	userColor      = color.New(color.FgCyan, color.Bold)
	assistantColor = color.New(color.FgGreen)
	traceColor     = color.New(color.FgHiBlack)
)

// printMessages writes the displayable messages, skipping the user's own
// input. Retained messages are intermediate steps and are rendered dimmed.
func printMessages(w io.Writer, msgs []model.Message) {
	for _, msg := range msgs {
		if !msg.Display || msg.Role == model.RoleUser {
			continue
		}
		c := assistantColor
		if msg.Retain {
			c = traceColor
		}
		_, _ = c.Fprintln(w, msg.Content)
		fmt.Fprintln(w)
	}
}

// printHistory writes messages including the user's own input
func printHistory(w io.Writer, msgs []model.Message) {
	for _, msg := range msgs {
		c := assistantColor
		if msg.Role == model.RoleUser {
			c = userColor
		}
		_, _ = c.Fprintln(w, msg.Content)
		fmt.Fprintln(w)
	}
}

func saveToArchive(cfg *model.Config, s *conversation.Session) error {
	archive, err := conversation.OpenArchive(cfg.Store.SessionArchive)
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()
	return archive.Save(s)
}

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/qbot/internal/conversation"
)

var resumeID string

// chatCmd runs an interactive conversation
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Chat keeps one session open across questions so the model can ask
follow-up questions and refer back to earlier answers. Every exchange is
saved to the session archive.

Commands inside the chat:
  /new       start a new session
  /history   print the visible conversation so far
  /quit      leave the chat

Example:
  qbot chat
  qbot chat --resume 3f0c2a9e-...
  qbot chat --show-intermediate`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&resumeID, "resume", "", "resume an archived session by id")
	chatCmd.Flags().BoolVar(&showIntermediate, "show-intermediate", false, "print model actions and lookup results")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withApp(ctx, func(a *app) error {
		asst, _, err := a.assistant(showIntermediate)
		if err != nil {
			return err
		}

		archive, err := conversation.OpenArchive(a.cfg.Store.SessionArchive)
		if err != nil {
			return err
		}
		defer func() { _ = archive.Close() }()

		s := conversation.NewSession()
		if resumeID != "" {
			if s, err = archive.Load(resumeID); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "qbot chat (session %s). Type /quit to leave.\n\n", s.ID)
		if resumeID != "" {
			printHistory(out, s.Visible())
		}

		return chatLoop(cmd.InOrStdin(), out, func(line string) (bool, error) {
			switch line {
			case "/quit", "/exit":
				return false, nil
			case "/new":
				s = conversation.NewSession()
				fmt.Fprintf(out, "New session %s\n\n", s.ID)
				return true, nil
			case "/history":
				printHistory(out, s.Visible())
				return true, nil
			}

			start := len(s.Messages)
			turn, askErr := asst.Ask(ctx, s, line)
			printMessages(out, s.Messages[start:])

			if err := archive.Save(s); err != nil {
				a.logger.Sugar().Warnf("save session %s: %v", s.ID, err)
			}

			switch {
			case errors.Is(askErr, conversation.ErrCompletion):
				fmt.Fprintf(out, "Error: %v\n\n", askErr)
			case askErr != nil:
				return false, askErr
			case turn.Exhausted:
				fmt.Fprintln(out, "No answer within the action limit; try rephrasing the question.")
				fmt.Fprintln(out)
			}
			return true, nil
		})
	})
}

// chatLoop reads lines from r and passes the non-empty ones to handle until
// it returns false, an error, or input ends
func chatLoop(r io.Reader, w io.Writer, handle func(line string) (bool, error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		_, _ = userColor.Fprint(w, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		more, err := handle(line)
		if err != nil || !more {
			return err
		}
	}
}

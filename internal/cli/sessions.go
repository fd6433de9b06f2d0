package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/qbot/internal/conversation"
)

var showAll bool

// sessionsCmd manages archived conversations
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List, show and delete archived conversations",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(archive *conversation.Archive) error {
			summaries, err := archive.List()
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED\tMESSAGES\tTITLE")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.UpdatedAt.Local().Format(time.DateTime), s.Messages, s.Title)
			}
			return tw.Flush()
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the conversation of an archived session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(archive *conversation.Archive) error {
			s, err := archive.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n\n", s.Title)
			if showAll {
				for _, msg := range s.Messages {
					_, _ = traceColor.Fprintf(out, "[%s]\n", msg.Role)
					fmt.Fprintf(out, "%s\n\n", msg.Content)
				}
				return nil
			}
			printHistory(out, s.Visible())
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an archived session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withArchive(func(archive *conversation.Archive) error {
			if err := archive.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Deleted session %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsShowCmd.Flags().BoolVar(&showAll, "all", false, "include hidden messages (system prompt, actions, lookup results)")
}

func withArchive(fn func(*conversation.Archive) error) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	archive, err := conversation.OpenArchive(cfg.Store.SessionArchive)
	if err != nil {
		return err
	}
	defer func() { _ = archive.Close() }()
	return fn(archive)
}

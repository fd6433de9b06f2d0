package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/retrieval"
)

var (
	searchThemes  bool
	searchContext bool
	searchTopic   bool
	searchTopN    int
)

// searchCmd runs the lookups the model can request, directly
var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Run verse, context and theme lookups without the model",
	Long: `Search runs the same lookups the model uses during a conversation:
- default: semantic verse search; separate queries with commas
- --context: verses around each "chapter:verse" reference
- --themes: theme labels matching the query, or every theme when no query is given
- --topic: verses carrying the given theme labels

Example:
  qbot search "Moses and Pharaoh, the staff"
  qbot search --context 2:255,7:103
  qbot search --themes patience
  qbot search --topic "Patience"`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolVar(&searchThemes, "themes", false, "search theme labels")
	searchCmd.Flags().BoolVar(&searchContext, "context", false, "show the verses around chapter:verse references")
	searchCmd.Flags().BoolVar(&searchTopic, "topic", false, "list the verses of theme labels")
	searchCmd.Flags().IntVarP(&searchTopN, "top", "n", 0, "results per query (default from config)")
	searchCmd.MarkFlagsMutuallyExclusive("themes", "context", "topic")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.TrimSpace(strings.Join(args, " "))

	return withApp(ctx, func(a *app) error {
		if searchTopN > 0 {
			a.retriever.TopN = searchTopN
		}
		out := cmd.OutOrStdout()

		switch {
		case searchThemes && query == "":
			return listThemes(cmd, a, out)

		case searchThemes:
			labels, err := a.retriever.ThemeLabels(ctx, query)
			if err != nil {
				return err
			}
			return printLines(out, labels)

		case query == "":
			return fmt.Errorf("a query is required")

		case searchContext:
			var refs []model.Ref
			for _, part := range splitComma(query) {
				ref, err := model.ParseRef(part)
				if err != nil {
					return err
				}
				refs = append(refs, ref)
			}
			lines, err := a.retriever.Context(ctx, refs)
			if err != nil {
				return err
			}
			return printLines(out, lines)

		case searchTopic:
			ids, err := a.retriever.ThemeVerses(ctx, splitComma(query))
			if err != nil {
				return err
			}
			records, err := a.store.Verses.Get(ctx, ids)
			if err != nil {
				return err
			}
			lines := make([]string, 0, len(records))
			for _, rec := range records {
				lines = append(lines, retrieval.Line(rec))
			}
			return printLines(out, lines)

		default:
			lines, err := a.retriever.Find(ctx, splitComma(query))
			if err != nil {
				return err
			}
			return printLines(out, lines)
		}
	})
}

func listThemes(cmd *cobra.Command, a *app, w io.Writer) error {
	records, err := a.store.Themes.All(cmd.Context())
	if err != nil {
		return err
	}
	for _, rec := range records {
		topic := model.TopicFromRecord(rec)
		fmt.Fprintf(w, "%s (%d)\n", topic.Label, len(topic.VerseIDs))
	}
	return nil
}

func printLines(w io.Writer, lines []string) error {
	if len(lines) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

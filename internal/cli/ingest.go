package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	ingestWorkers int
	ingestRPS     float64
	ingestTimeout time.Duration
)

// ingestCmd loads a corpus file into the configured store
var ingestCmd = &cobra.Command{
	Use:   "ingest <corpus.json>",
	Short: "Load a verse corpus into the verse and theme collections",
	Long: `Ingest reads a corpus file, embeds every verse and every topic and
writes them to the configured store:
- Raw dumps (chapter → verses with words, topics and notes) are sanitized
- Normalized files ("chapter:verse" → text, topics, notes) are used as is
- Topics are inverted into the theme collection
- Embedding requests run in parallel batches under a rate limit

Ingestion is idempotent; re-running it replaces records by id.

Example:
  qbot ingest quran.json
  qbot ingest quran.json --store postgres --workers 8
  qbot ingest quran.json --rps 2`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent embedding batches (default from config)")
	ingestCmd.Flags().Float64Var(&ingestRPS, "rps", 0, "embedding batches per second (default from config)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 30*time.Minute, "total timeout for ingestion")
}

func runIngest(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), ingestTimeout)
	defer cancel()

	return withApp(ctx, func(a *app) error {
		if ingestWorkers > 0 {
			a.cfg.Ingest.Workers = ingestWorkers
		}
		if ingestRPS > 0 {
			a.cfg.Ingest.RequestsPerSecond = ingestRPS
		}

		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  Corpus:     %s\n", file)
		fmt.Fprintf(os.Stderr, "  Store:      %s\n", a.cfg.Store.Backend)
		fmt.Fprintf(os.Stderr, "  Embedder:   %s\n", a.embedder.Name())
		fmt.Fprintf(os.Stderr, "  Workers:    %d\n", a.cfg.Ingest.Workers)
		fmt.Fprintf(os.Stderr, "\n")

		stats, err := a.ingestFile(ctx, file, func(done, total int) {
			fmt.Fprintf(os.Stderr, "\r  Verses:     %d/%d", done, total)
		})
		fmt.Fprintf(os.Stderr, "\n")
		if err != nil {
			return fmt.Errorf("ingest %s: %w", file, err)
		}

		fmt.Fprintf(os.Stderr, "\n✓ Ingested %d verses and %d topics in %v\n",
			stats.Verses, stats.Topics, stats.Duration.Round(time.Millisecond))
		return nil
	})
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/qbot/internal/ingest"
)

var exportOut string

// exportCmd writes the stored verses back out as a normalized corpus
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored verses as a normalized corpus file",
	Long: `Export writes every stored verse as {"chapter:verse": {text, topics, notes}}.
The output can be ingested again unchanged.

Example:
  qbot export -o quran.normalized.json
  qbot export --store sqlite > verses.json`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withApp(ctx, func(a *app) (err error) {
		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, createErr := os.Create(exportOut)
			if createErr != nil {
				return fmt.Errorf("create output file: %w", createErr)
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("close output file: %w", closeErr)
				}
			}()
			w = f
		}

		n, err := ingest.Export(ctx, a.store.Verses, w)
		if err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Fprintf(os.Stderr, "✓ Exported %d verses to %s\n", n, exportOut)
		}
		return nil
	})
}

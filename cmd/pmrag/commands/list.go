package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/pmrag-go/internal/logging"
)

// NewListCmd constructs the `pmrag list` command, which prints the saved
// articles, newest first.
func NewListCmd() *cobra.Command {
	var idsOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved articles",
		Long: `List the articles saved in your library, most recently saved first.

Examples:
  pmrag list
  pmrag list --ids`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			lib, err := openLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			defer lib.close(log)

			out := cmd.OutOrStdout()
			if idsOnly {
				ids, err := lib.store.IDs(ctx)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			articles, err := lib.store.List(ctx)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			printArticles(out, articles)
			return nil
		},
	}

	cmd.Flags().BoolVar(&idsOnly, "ids", false, "Print only the saved PMIDs")

	return cmd
}

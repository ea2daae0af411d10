package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/pmrag-go/internal/logging"
)

// NewTranslateCmd constructs the `pmrag translate` command, which fetches an
// article from PubMed and prints its Korean translation.
func NewTranslateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "translate [pmid]",
		Short: "Translate a PubMed article's title and abstract into Korean",
		Long: `Fetch an article from PubMed and translate its title and abstract into
Korean with Gemini. Requires GEMINI_API_KEY; TRANSLATE_MODEL overrides the
default model.

Example:
  pmrag translate 38012345`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			tr := buildTranslator(ctx, log)
			if tr == nil {
				return fmt.Errorf("translate: GEMINI_API_KEY is required")
			}

			articles, err := buildPubMed().Fetch(ctx, args)
			if err != nil {
				return fmt.Errorf("translate: %w", err)
			}
			if len(articles) == 0 {
				return fmt.Errorf("translate: article %s not found", args[0])
			}

			res, err := tr.Translate(ctx, articles[0].Title, articles[0].Abstract)
			if err != nil {
				return fmt.Errorf("translate: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.TranslatedTitle)
			fmt.Fprintln(out)
			fmt.Fprintln(out, res.TranslatedAbstract)
			return nil
		},
	}
}

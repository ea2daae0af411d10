package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/pmrag-go/internal/ingestion"
	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/rag"
	"github.com/54b3r/pmrag-go/internal/translate"
)

// NewSaveCmd constructs the `pmrag save` command, which fetches articles by
// PMID from PubMed, embeds them and stores them in the library.
func NewSaveCmd() *cobra.Command {
	var withTranslation bool

	cmd := &cobra.Command{
		Use:   "save [pmid...]",
		Short: "Fetch PubMed articles and save them with embeddings",
		Long: `Fetch one or more articles from PubMed by PMID, embed their title and
abstract and save them to the library. Articles that are already saved are
reported and skipped; one failure does not stop the batch.

Examples:
  pmrag save 38012345
  pmrag save --translate 38012345 37998877`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			articles, err := buildPubMed().Fetch(ctx, args)
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
			if len(articles) == 0 {
				return fmt.Errorf("save: no articles found for %v", args)
			}

			if withTranslation {
				if tr := buildTranslator(ctx, log); tr != nil {
					translateAll(ctx, log, tr, articles)
				}
			}

			lib, err := openLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
			defer lib.close(log)

			p, err := ingestion.NewPipeline(lib.embedder, lib.store)
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}

			out := cmd.OutOrStdout()
			outcomes := p.SaveAll(ctx, articles, func(msg string) {
				fmt.Fprintln(out, msg)
			})

			var failed int
			for _, o := range outcomes {
				if o.Err != nil && !errors.Is(o.Err, rag.ErrDuplicateArticle) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("save: %d of %d articles failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withTranslation, "translate", false, "Store a Korean translation alongside each article")

	return cmd
}

// translateAll fills the translated fields in place. Translation failures are
// logged and leave the article untranslated.
func translateAll(ctx context.Context, log *slog.Logger, tr *translate.Service, articles []rag.Article) {
	for i := range articles {
		res, err := tr.Translate(ctx, articles[i].Title, articles[i].Abstract)
		if err != nil {
			log.Warn("translation failed, saving untranslated", slog.String("id", articles[i].ID), slog.Any("error", err))
			continue
		}
		articles[i].TranslatedTitle = res.TranslatedTitle
		articles[i].TranslatedAbstract = res.TranslatedAbstract
	}
}

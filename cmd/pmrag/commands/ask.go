package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/pmrag-go/internal/logging"
	"github.com/54b3r/pmrag-go/internal/pipeline"
	"github.com/54b3r/pmrag-go/internal/pubmed"
	"github.com/54b3r/pmrag-go/internal/tracing"
)

// NewAskCmd constructs the `pmrag ask` command, which answers one question
// from the saved articles and prints the answer with its sources.
func NewAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from your saved PubMed articles",
		Long: `Answer a natural-language question (English or Korean) using only the
articles saved in your library. The answer cites sources as [Article N].

Examples:
  pmrag ask "Does metformin lower HbA1c in type 2 diabetes?"
  pmrag ask --json "메트포르민은 당화혈색소를 낮추나요?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			flush, _ := tracing.Setup()
			defer flush()

			lib, err := openLibrary(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer lib.close(log)

			client, _, err := buildChatClient(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			p, err := buildPipeline(client, lib, nil)
			if err != nil {
				return fmt.Errorf("ask: failed to build pipeline: %w", err)
			}

			res, err := p.Answer(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(out, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

// printResult renders res for a terminal: the answer, the numbered sources
// and a one-line retrieval summary.
func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintln(w, res.Answer)
	if len(res.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for i, a := range res.Sources {
			fmt.Fprintf(w, "  [Article %d] %s (PMID %s) %s\n", i+1, a.Title, a.ID, pubmed.ArticleURL(a.ID))
		}
	}
	info := res.SearchInfo
	fmt.Fprintln(w)
	if info.Empty {
		fmt.Fprintf(w, "Search: %d articles found above threshold %.2f\n", info.ArticlesFound, info.Threshold)
		return
	}
	fmt.Fprintf(w, "Search: %d found, %d highly relevant, %d supplementary, %d used (max similarity %s)\n",
		info.ArticlesFound, info.HighlyRelevant, info.Supplementary, info.TotalUsed, info.MaxSimilarity)
}

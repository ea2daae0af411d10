package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/pmrag-go/internal/pubmed"
	"github.com/54b3r/pmrag-go/internal/rag"
)

// NewSearchCmd constructs the `pmrag search` command, which queries PubMed
// and prints matching articles without saving them.
func NewSearchCmd() *cobra.Command {
	var sort string

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search PubMed for articles",
		Long: `Search PubMed through the NCBI E-utilities API and print up to 300 matches.
Articles with free full text are marked [free].

Set NCBI_API_KEY to raise the request rate limit from 3/s to 10/s.

Examples:
  pmrag search "metformin hba1c"
  pmrag search --sort pubdate "sglt2 heart failure"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			articles, err := buildPubMed().Search(cmd.Context(), strings.Join(args, " "), pubmed.ParseSort(sort))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			printArticles(cmd.OutOrStdout(), articles)
			return nil
		},
	}

	cmd.Flags().StringVar(&sort, "sort", "relevance", "Sort order: relevance or pubdate")

	return cmd
}

// printArticles renders one line per article followed by author and date.
func printArticles(w io.Writer, articles []rag.Article) {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return
	}
	for _, a := range articles {
		free := ""
		if a.IsFree {
			free = " [free]"
		}
		fmt.Fprintf(w, "%s  %s%s\n", a.ID, a.Title, free)
		fmt.Fprintf(w, "          %s, %s\n", a.Authors, a.PubDate)
	}
}

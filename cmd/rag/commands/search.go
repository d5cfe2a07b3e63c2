package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"manualrag/internal/domain"
)

var searchLimit int

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the manual sections most similar to a query",
		Long: `Embed the query and list the most similar manual sections without
generating an answer.

Examples:
  rag search "warp markers"
  rag search --limit 10 --format json "sends and returns"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}
	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	emb, err := a.embedder(cmd.Context())
	if err != nil {
		return err
	}
	ret, err := a.retriever()
	if err != nil {
		return err
	}
	vecs, err := emb.Embed(cmd.Context(), []string{args[0]})
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}
	results, err := ret.Retrieve(cmd.Context(), vecs[0], searchLimit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	return printResults(cmd, results)
}

type resultView struct {
	ChunkID    string  `json:"chunk_id"`
	Title      string  `json:"title"`
	Breadcrumb string  `json:"breadcrumb"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
}

func toViews(results []domain.SearchResult) []resultView {
	out := make([]resultView, len(results))
	for i, r := range results {
		out[i] = resultView{
			ChunkID:    r.Metadata.ChunkID,
			Title:      r.Metadata.Title,
			Breadcrumb: r.Metadata.Breadcrumb(),
			Similarity: r.Similarity,
			Text:       r.Text,
		}
	}
	return out
}

func printResults(cmd *cobra.Command, results []domain.SearchResult) error {
	if outputFormat == "json" {
		data, err := json.MarshalIndent(toViews(results), "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching sections.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSECTION\tPATH\tTEXT")
	for _, r := range results {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", r.Similarity, r.Metadata.ChunkID, r.Metadata.Breadcrumb(), truncate(r.Text, 60))
	}
	return w.Flush()
}

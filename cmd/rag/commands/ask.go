package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"manualrag/internal/service"
)

var askLang string

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the indexed manual",
		Long: `Retrieve the most relevant manual sections and generate an answer
grounded in them. The answer is followed by the sections it was built from.

Examples:
  rag ask "How do I warp a clip?"
  rag ask --lang sv "Hur spelar jag in automation?"`,
		Args: cobra.ExactArgs(1),
		RunE: runAsk,
	}
	cmd.Flags().StringVar(&askLang, "lang", "", "Answer language: en or sv (default from config)")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service(cmd.Context())
	if err != nil {
		return err
	}
	ans, err := svc.Answer(cmd.Context(), args[0], a.language(askLang))
	if err != nil {
		return err
	}
	return printAnswer(cmd, ans)
}

func printAnswer(cmd *cobra.Command, ans service.Answer) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		data, err := json.MarshalIndent(map[string]any{
			"request_id":     ans.RequestID,
			"answer":         ans.Text,
			"no_answer":      ans.NoAnswer,
			"quota_exceeded": ans.QuotaExceeded,
			"sources":        toViews(ans.Sources),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}
	fmt.Fprintln(out, ans.Text)
	if ans.NoAnswer || ans.QuotaExceeded || len(ans.Sources) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Sources:")
	for i, s := range ans.Sources {
		fmt.Fprintf(out, "  %d. [%s] %s (similarity %.3f)\n", i+1, s.Metadata.ChunkID, s.Metadata.Breadcrumb(), s.Similarity)
	}
	return nil
}

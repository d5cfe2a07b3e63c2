package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"manualrag/internal/service"
)

var (
	evalLang     string
	evalQuestion int
)

// NewEvalCmd creates the eval command.
func NewEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score generated answers against reference answers",
		Long: `Run the evaluation questions through the pipeline and score each answer
by its cosine similarity to the reference answer. Questions that come back
with the no-answer text score 0. The session average counts each distinct
question and answer pair once.

Examples:
  rag eval
  rag eval --lang sv --question 3`,
		Args: cobra.NoArgs,
		RunE: runEval,
	}
	cmd.Flags().StringVar(&evalLang, "lang", "", "Question language: en or sv (default from config)")
	cmd.Flags().IntVar(&evalQuestion, "question", 0, "Run only the Nth question (1-based); 0 runs all")
	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	if evalQuestion < 0 {
		return fmt.Errorf("question must not be negative, got %d", evalQuestion)
	}
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	questions := service.DefaultQuestions()
	if path := a.cfg.Answers.QuestionsFile; path != "" {
		if questions, err = service.LoadQuestions(path); err != nil {
			return fmt.Errorf("loading questions: %w", err)
		}
	}
	lang := a.language(evalLang)
	items := questions[lang]
	if len(items) == 0 {
		return fmt.Errorf("no evaluation questions for %s", lang.DisplayName())
	}
	if evalQuestion > 0 {
		if evalQuestion > len(items) {
			return fmt.Errorf("question %d out of range, %d available", evalQuestion, len(items))
		}
		items = items[evalQuestion-1 : evalQuestion]
	}

	svc, err := a.service(cmd.Context())
	if err != nil {
		return err
	}
	session := service.NewEvalSession()
	evals := make([]service.Evaluation, 0, len(items))
	for _, q := range items {
		ev, err := svc.Evaluate(cmd.Context(), q.Question, q.IdealAnswer, lang)
		if err != nil {
			return fmt.Errorf("evaluating %q: %w", q.Question, err)
		}
		session.Add(ev)
		evals = append(evals, ev)
		if ev.Answer.QuotaExceeded {
			a.logger.Warn("quota exceeded, stopping evaluation")
			break
		}
	}
	avg, n := session.Average()
	return printEval(cmd, evals, avg, n)
}

func printEval(cmd *cobra.Command, evals []service.Evaluation, avg float64, n int) error {
	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		type row struct {
			Question string  `json:"question"`
			Answer   string  `json:"answer"`
			Ideal    string  `json:"ideal_answer"`
			Score    float64 `json:"score"`
		}
		rows := make([]row, len(evals))
		for i, ev := range evals {
			rows[i] = row{Question: ev.Question, Answer: ev.Answer.Text, Ideal: ev.Ideal, Score: ev.Score}
		}
		data, err := json.MarshalIndent(map[string]any{"results": rows, "average": avg, "scored": n}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintf(out, "%s\n", data)
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tQUESTION\tANSWER")
	for _, ev := range evals {
		fmt.Fprintf(w, "%.2f\t%s\t%s\n", ev.Score, truncate(ev.Question, 50), truncate(ev.Answer.Text, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nAverage similarity: %.2f over %d answers\n", avg, n)
	return nil
}

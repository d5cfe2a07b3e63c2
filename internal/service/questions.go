package service

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"manualrag/internal/domain"
)

//go:embed questions.yaml
var defaultQuestions []byte

// EvalQuestion is a question with its reference answer.
type EvalQuestion struct {
	Question    string `yaml:"question"`
	IdealAnswer string `yaml:"ideal_answer"`
}

// QuestionSet holds evaluation questions per language.
type QuestionSet map[domain.Language][]EvalQuestion

// DefaultQuestions returns the built-in English and Swedish question set.
func DefaultQuestions() QuestionSet {
	qs, err := parseQuestions(defaultQuestions)
	if err != nil {
		panic(fmt.Sprintf("embedded questions: %v", err))
	}
	return qs
}

// LoadQuestions reads a question set from a YAML file keyed by language code.
func LoadQuestions(path string) (QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	qs, err := parseQuestions(data)
	if err != nil {
		return nil, fmt.Errorf("questions %s: %w", path, err)
	}
	return qs, nil
}

func parseQuestions(data []byte) (QuestionSet, error) {
	var raw map[string][]EvalQuestion
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	qs := make(QuestionSet, len(raw))
	for code, items := range raw {
		for i, q := range items {
			if q.Question == "" || q.IdealAnswer == "" {
				return nil, fmt.Errorf("%s entry %d: question and ideal_answer are required", code, i)
			}
		}
		lang := domain.ParseLanguage(code)
		qs[lang] = append(qs[lang], items...)
	}
	return qs, nil
}

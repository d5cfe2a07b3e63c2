package service

import (
	"strings"
	"sync"
)

// EvalSession accumulates evaluation scores. Re-running a question that
// yields the same answer is counted once.
type EvalSession struct {
	mu     sync.Mutex
	scores []float64
	seen   map[[2]string]struct{}
}

// NewEvalSession creates an empty session.
func NewEvalSession() *EvalSession {
	return &EvalSession{seen: make(map[[2]string]struct{})}
}

// Add records ev and reports whether it was counted. Quota advisories are
// never counted.
func (s *EvalSession) Add(ev Evaluation) bool {
	if ev.Answer.QuotaExceeded {
		return false
	}
	key := [2]string{strings.TrimSpace(ev.Question), strings.TrimSpace(ev.Answer.Text)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	s.scores = append(s.scores, ev.Score)
	return true
}

// Average returns the mean score and the number of counted evaluations.
func (s *EvalSession) Average() (float64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scores) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range s.scores {
		sum += v
	}
	return sum / float64(len(s.scores)), len(s.scores)
}

// Reset forgets every recorded score.
func (s *EvalSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = nil
	s.seen = make(map[[2]string]struct{})
}

package analyzer

import (
	"context"
	"sync"
)

// stubGenerator returns canned responses in order and records every call.
type stubGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     [][]Message
	options   []Options
}

func (s *stubGenerator) Generate(_ context.Context, messages []Message, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, messages)
	s.options = append(s.options, opts)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *stubGenerator) Model() string {
	return "stub-model"
}

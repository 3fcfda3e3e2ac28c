package service

import (
	"context"
	"sync"

	"nordbot/internal/domain"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	queries []string
	docs    []string
	vec     []float64
	err     error
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedDocument(_ context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeIndex struct {
	passages []domain.Passage
	err      error

	queries   int
	lastTopK  int
	lastVec   []float64
	ensured   int
	upserted  []domain.Chunk
	upserts   int
	upsertErr error
}

func (f *fakeIndex) Name() string { return "fake-index" }

func (f *fakeIndex) Query(_ context.Context, vector []float64, topK int) ([]domain.Passage, error) {
	f.queries++
	f.lastTopK = topK
	f.lastVec = vector
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

func (f *fakeIndex) Ensure(_ context.Context, dimension int) error {
	f.ensured = dimension
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float64) error {
	f.upserts++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, chunks...)
	return nil
}

type generateCall struct {
	prompt string
	cfg    domain.GenerationConfig
}

// fakeGenerator answers calls in order from replies; failAt makes the
// n-th call (1-based) fail with err.
type fakeGenerator struct {
	replies []string
	failAt  int
	err     error
	calls   []generateCall
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	f.calls = append(f.calls, generateCall{prompt: prompt, cfg: cfg})
	n := len(f.calls)
	if f.failAt == n {
		return "", f.err
	}
	if n <= len(f.replies) {
		return f.replies[n-1], nil
	}
	return "", nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"nordbot/internal/domain"
	"nordbot/internal/metrics"
	"nordbot/internal/prompt"
	"nordbot/internal/session"
)

// Variant selects how many generation passes a turn runs.
type Variant string

const (
	// VariantSingle retrieves passages and runs one generation.
	VariantSingle Variant = "single"
	// VariantGrounded runs grounding, RAG and synthesis generations in sequence.
	VariantGrounded Variant = "grounded"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 5

// Stages holds the sampling parameters of every generation pass.
type Stages struct {
	Answer    domain.GenerationConfig
	Grounding domain.GenerationConfig
	RAG       domain.GenerationConfig
	Synthesis domain.GenerationConfig
}

// Orchestrator answers one question per call by chaining embedding,
// retrieval and generation. It holds no per-user state.
type Orchestrator struct {
	embedder  domain.Embedder
	index     domain.Searcher
	generator domain.Generator
	stages    Stages
	variant   Variant
	topK      int
	log       *zap.Logger
	metrics   *metrics.Pipeline
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

func WithVariant(v Variant) Option { return func(o *Orchestrator) { o.variant = v } }

func WithTopK(k int) Option { return func(o *Orchestrator) { o.topK = k } }

func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func WithMetrics(m *metrics.Pipeline) Option { return func(o *Orchestrator) { o.metrics = m } }

func NewOrchestrator(embedder domain.Embedder, index domain.Searcher, generator domain.Generator, stages Stages, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		embedder:  embedder,
		index:     index,
		generator: generator,
		stages:    stages,
		variant:   VariantSingle,
		topK:      DefaultTopK,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.topK <= 0 {
		o.topK = DefaultTopK
	}
	return o
}

// Variant reports the configured pipeline variant.
func (o *Orchestrator) Variant() Variant { return o.variant }

// Ask answers question and, on success, appends the question and the answer
// to sess. A failed turn leaves sess untouched.
func (o *Orchestrator) Ask(ctx context.Context, sess *session.Session, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		o.metrics.ObserveTurn("rejected")
		return "", domain.ErrEmptyQuery
	}
	log := o.log.With(zap.String("session", sess.ID), zap.String("variant", string(o.variant)))
	started := time.Now()

	var (
		answer string
		err    error
	)
	switch o.variant {
	case VariantGrounded:
		answer, err = o.answerGrounded(ctx, question)
	default:
		answer, err = o.answerSingle(ctx, question)
	}
	if err != nil {
		o.metrics.ObserveTurn("failed")
		log.Error("turn failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return "", err
	}

	sess.AppendTurn(question, answer)
	o.metrics.ObserveTurn("answered")
	log.Info("turn answered",
		zap.Int("question_len", len(question)),
		zap.Int("answer_len", len(answer)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return answer, nil
}

func (o *Orchestrator) answerSingle(ctx context.Context, question string) (string, error) {
	passages, err := o.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	return o.generate(ctx, "answer", prompt.Answer(question, passages), o.stages.Answer)
}

func (o *Orchestrator) answerGrounded(ctx context.Context, question string) (string, error) {
	grounding, err := o.generate(ctx, "grounding", prompt.Grounding(question), o.stages.Grounding)
	if err != nil {
		return "", err
	}
	passages, err := o.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	rag, err := o.generate(ctx, "rag", prompt.RAG(question, passages), o.stages.RAG)
	if err != nil {
		return "", err
	}
	return o.generate(ctx, "synthesis", prompt.Synthesis(grounding, rag), o.stages.Synthesis)
}

// Retrieve embeds question and returns the top-k passages in index order.
func (o *Orchestrator) Retrieve(ctx context.Context, question string) ([]domain.Passage, error) {
	started := time.Now()
	vec, err := o.embedder.EmbedQuery(ctx, question)
	o.metrics.ObserveStage(string(domain.StageEmbedding), started, err)
	if err != nil {
		return nil, domain.NewStageError(domain.StageEmbedding, o.embedder.Name(), err)
	}

	started = time.Now()
	passages, err := o.index.Query(ctx, vec, o.topK)
	o.metrics.ObserveStage(string(domain.StageRetrieval), started, err)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRetrieval, "", err)
	}
	o.log.Debug("passages retrieved", zap.Int("count", len(passages)), zap.Int("top_k", o.topK))
	return passages, nil
}

func (o *Orchestrator) generate(ctx context.Context, step, p string, cfg domain.GenerationConfig) (string, error) {
	started := time.Now()
	text, err := o.generator.Generate(ctx, p, cfg)
	o.metrics.ObserveStage(string(domain.StageGeneration), started, err)
	if err != nil {
		return "", domain.NewStageError(domain.StageGeneration, step, err)
	}
	o.log.Debug("generation finished",
		zap.String("step", step),
		zap.Float64("temperature", cfg.Temperature),
		zap.Int("prompt_len", len(p)),
	)
	return text, nil
}

// FormatError renders a failed turn the way the chat surfaces display it.
func FormatError(err error) string {
	return fmt.Sprintf("An error occurred: %v", err)
}

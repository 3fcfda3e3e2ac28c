package domain

import (
	"errors"
	"fmt"
)

// Stage names a step of the answer pipeline.
type Stage string

const (
	StageEmbedding  Stage = "embedding"
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
)

var (
	ErrEmptyQuery = errors.New("empty query")

	ErrEmbedding  = errors.New("embedding failed")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")
)

// StageError wraps an external-service failure with the pipeline stage it
// happened in. errors.Is matches it against the stage sentinel.
type StageError struct {
	Stage Stage
	// Step further qualifies generation failures ("grounding", "rag", ...).
	Step string
	Err  error
}

func (e *StageError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is implements errors.Is
func (e *StageError) Is(target error) bool {
	switch target {
	case ErrEmbedding:
		return e.Stage == StageEmbedding
	case ErrRetrieval:
		return e.Stage == StageRetrieval
	case ErrGeneration:
		return e.Stage == StageGeneration
	}
	t, ok := target.(*StageError)
	if !ok {
		return false
	}
	return e.Stage == t.Stage
}

// NewStageError wraps err for the given stage.
func NewStageError(stage Stage, step string, err error) *StageError {
	return &StageError{Stage: stage, Step: step, Err: err}
}

// APIError is returned by provider clients for non-2xx responses.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

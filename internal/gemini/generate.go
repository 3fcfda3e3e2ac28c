package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nordbot/internal/domain"
)

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	CandidateCount  int     `json:"candidateCount,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// ErrNoCandidates is returned when the model produced no usable text.
var ErrNoCandidates = errors.New("gemini returned no candidates")

// Generate sends prompt as a single user turn and returns the text of the
// first candidate. Temperature is always sent, so 0.0 means deterministic.
func (c *Client) Generate(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
			CandidateCount:  cfg.CandidateCount,
		},
	}
	var out generateResponse
	if err := c.post(ctx, "generateContent", req, &out); err != nil {
		return "", err
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return "", ErrNoCandidates
	}
	first := out.Candidates[0]
	var b strings.Builder
	for _, p := range first.Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w (finish reason %s)", ErrNoCandidates, first.FinishReason)
	}
	return b.String(), nil
}

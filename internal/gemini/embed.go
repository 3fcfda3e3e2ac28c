package gemini

import (
	"context"
	"errors"
)

const (
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

type embedRequest struct {
	Model    string  `json:"model"`
	Content  content `json:"content"`
	TaskType string  `json:"taskType,omitempty"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// EmbedQuery embeds a user question for retrieval.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return c.embed(ctx, text, taskRetrievalQuery)
}

// EmbedDocument embeds a stored passage.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	return c.embed(ctx, text, taskRetrievalDocument)
}

func (c *Client) embed(ctx context.Context, text, task string) ([]float64, error) {
	req := embedRequest{
		Model:    c.model,
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: task,
	}
	var out embedResponse
	if err := c.post(ctx, "embedContent", req, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return out.Embedding.Values, nil
}

package topics

import (
	"context"

	"cspanlens/internal/services/llm"
)

// LLMClassifier scores topics with a chat-completions model.
type LLMClassifier struct {
	client *llm.Client
}

// NewLLMClassifier wraps client. The same client also satisfies Summarizer.
func NewLLMClassifier(client *llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, text string, labels []string) (Topics, error) {
	scores, err := c.client.ClassifyTopics(ctx, text, labels)
	if err != nil {
		return Topics{}, err
	}
	return Topics{Labels: scores.Labels, Scores: scores.Scores}, nil
}

var (
	_ Classifier = (*LLMClassifier)(nil)
	_ Summarizer = (*llm.Client)(nil)
)

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cspanlens/internal/services"
)

// TopicScores holds candidate labels ordered by descending score.
type TopicScores struct {
	Labels []string
	Scores []float64
}

// ClassifyTopics scores text against the candidate labels. Labels the model
// omits score zero; unknown labels in the reply are ignored. Scores are
// normalized to sum to 1 and returned highest first, ties in candidate order.
func (c *Client) ClassifyTopics(ctx context.Context, text string, labels []string) (TopicScores, error) {
	const op = "classify topics"
	text = strings.TrimSpace(text)
	if text == "" || len(labels) == 0 {
		return TopicScores{}, services.Wrap(services.ErrValidation, "llm", op, "text and labels required", nil)
	}
	prompt, err := json.Marshal(struct {
		Text   string   `json:"text"`
		Labels []string `json:"labels"`
	}{text, labels})
	if err != nil {
		return TopicScores{}, fmt.Errorf("llm %s: encode prompt: %w", op, err)
	}
	content, err := c.completeJSON(ctx, TopicClassificationPrompt, string(prompt), 0, "llm "+op)
	if err != nil {
		return TopicScores{}, err
	}
	var parsed struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return TopicScores{}, services.Wrap(services.ErrExternalTool, "llm", op, "parse payload", err)
	}
	return rankScores(labels, parsed.Scores)
}

func rankScores(labels []string, raw map[string]float64) (TopicScores, error) {
	lookup := make(map[string]float64, len(raw))
	for key, value := range raw {
		lookup[strings.ToLower(strings.TrimSpace(key))] = value
	}
	scores := make([]float64, len(labels))
	var total float64
	for i, label := range labels {
		value := lookup[strings.ToLower(label)]
		if value < 0 {
			value = 0
		}
		scores[i] = value
		total += value
	}
	if total <= 0 {
		return TopicScores{}, services.Wrap(services.ErrExternalTool, "llm", "classify topics", "no label received a positive score", nil)
	}

	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	result := TopicScores{
		Labels: make([]string, len(labels)),
		Scores: make([]float64, len(labels)),
	}
	for pos, idx := range order {
		result.Labels[pos] = labels[idx]
		result.Scores[pos] = scores[idx] / total
	}
	return result, nil
}

// Summarize condenses text to roughly minTokens..maxTokens words.
func (c *Client) Summarize(ctx context.Context, text string, minTokens, maxTokens int) (string, error) {
	const op = "summarize"
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "llm", op, "text required", nil)
	}
	if minTokens < 0 || maxTokens < minTokens {
		return "", services.Wrap(services.ErrValidation, "llm", op, fmt.Sprintf("invalid token bounds %d..%d", minTokens, maxTokens), nil)
	}
	prompt, err := json.Marshal(struct {
		Text     string `json:"text"`
		MinWords int    `json:"min_words"`
		MaxWords int    `json:"max_words"`
	}{text, minTokens, maxTokens})
	if err != nil {
		return "", fmt.Errorf("llm %s: encode prompt: %w", op, err)
	}
	// The JSON envelope costs tokens on top of the summary itself.
	content, err := c.completeJSON(ctx, SummaryPrompt, string(prompt), maxTokens*2+32, "llm "+op)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "llm", op, "parse payload", err)
	}
	summary := strings.Join(strings.Fields(parsed.Summary), " ")
	if summary == "" {
		return "", services.Wrap(services.ErrExternalTool, "llm", op, "empty summary", nil)
	}
	return summary, nil
}

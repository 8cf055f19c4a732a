package topics

import (
	"context"
	"log/slog"
	"slices"
	"unicode/utf8"

	"cspanlens/internal/logging"
	"cspanlens/internal/textutil"
)

// CandidateLabels are the topics every text is scored against, in order.
var CandidateLabels = []string{
	"policy", "legislation", "economy", "healthcare",
	"foreign affairs", "national security", "election",
	"budget", "infrastructure", "education", "immigration",
}

// UnknownLabel marks a record whose classification failed.
const UnknownLabel = "unknown"

// Defaults for Options.
const (
	DefaultMinContextChars  = 20
	DefaultSummaryMinChars  = 100
	DefaultSummaryMinTokens = 20
	DefaultSummaryMaxTokens = 60
)

// fallbackSummaryChars is how much of the text stands in for a failed summary.
const fallbackSummaryChars = 100

// Topics holds labels ordered by descending score.
type Topics struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Top returns the highest scoring label.
func (t Topics) Top() (string, float64, bool) {
	if len(t.Labels) == 0 || len(t.Scores) == 0 {
		return "", 0, false
	}
	return t.Labels[0], t.Scores[0], true
}

// Record is the context analysis of the speech at one timestamp.
type Record struct {
	Timestamp float64 `json:"timestamp"`
	Text      string  `json:"text"`
	Topics    Topics  `json:"topics"`
	Summary   string  `json:"summary"`
	Degraded  bool    `json:"degraded,omitempty"`
}

// Classifier scores text against candidate labels.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (Topics, error)
}

// Summarizer condenses text to a bounded number of tokens.
type Summarizer interface {
	Summarize(ctx context.Context, text string, minTokens, maxTokens int) (string, error)
}

// Options tunes the analyzer thresholds. Zero values take the defaults.
type Options struct {
	MinContextChars  int
	SummaryMinChars  int
	SummaryMinTokens int
	SummaryMaxTokens int
	Labels           []string
}

func (o Options) withDefaults() Options {
	if o.MinContextChars <= 0 {
		o.MinContextChars = DefaultMinContextChars
	}
	if o.SummaryMinChars <= 0 {
		o.SummaryMinChars = DefaultSummaryMinChars
	}
	if o.SummaryMinTokens <= 0 {
		o.SummaryMinTokens = DefaultSummaryMinTokens
	}
	if o.SummaryMaxTokens < o.SummaryMinTokens {
		o.SummaryMaxTokens = max(DefaultSummaryMaxTokens, o.SummaryMinTokens)
	}
	if len(o.Labels) == 0 {
		o.Labels = CandidateLabels
	}
	return o
}

// Analyzer produces context records and keeps the successful ones.
type Analyzer struct {
	classifier Classifier
	summarizer Summarizer
	opts       Options
	logger     *slog.Logger

	records           []Record
	classifyFailures  int
	summarizeFailures int
}

// NewAnalyzer builds an analyzer. A nil classifier makes every record
// degraded; a nil summarizer makes every summary the truncated text.
func NewAnalyzer(classifier Classifier, summarizer Summarizer, opts Options, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		classifier: classifier,
		summarizer: summarizer,
		opts:       opts.withDefaults(),
		logger:     logging.NewComponentLogger(logger, "topics"),
	}
}

// ShouldAnalyze reports whether text is long enough to be worth analyzing.
func (a *Analyzer) ShouldAnalyze(text string) bool {
	return utf8.RuneCountInString(text) > a.opts.MinContextChars
}

// Analyze classifies text and, for longer texts, summarizes it. It never
// returns an error.
func (a *Analyzer) Analyze(ctx context.Context, text string, timestamp float64) Record {
	if a.classifier == nil {
		return degraded(text, timestamp)
	}
	topics, err := a.classifier.Classify(ctx, text, a.opts.Labels)
	if err != nil {
		a.classifyFailures++
		if a.classifyFailures == 1 {
			logging.WarnWithContext(a.logger, "topic classification failed", "topic_classification_failed",
				logging.Float64("timestamp", timestamp),
				logging.Error(err),
				logging.String(logging.FieldImpact, "context record labelled unknown"),
				logging.String(logging.FieldErrorHint, "check the [llm] endpoint and api key"),
			)
		} else {
			a.logger.Debug("topic classification failed",
				logging.Float64("timestamp", timestamp),
				logging.Error(err),
				logging.Int("failures", a.classifyFailures))
		}
		return degraded(text, timestamp)
	}

	record := Record{
		Timestamp: timestamp,
		Text:      text,
		Topics:    topics,
	}
	if utf8.RuneCountInString(text) > a.opts.SummaryMinChars {
		record.Summary = a.summarize(ctx, text, timestamp)
	}
	a.records = append(a.records, record)

	if label, score, ok := topics.Top(); ok {
		a.logger.Debug("context analyzed",
			logging.Float64("timestamp", timestamp),
			logging.String("top_topic", label),
			logging.Float64("score", score),
			logging.Bool("summarized", record.Summary != ""))
	}
	return record
}

func (a *Analyzer) summarize(ctx context.Context, text string, timestamp float64) string {
	if a.summarizer == nil {
		return textutil.Truncate(text, fallbackSummaryChars, "...")
	}
	summary, err := a.summarizer.Summarize(ctx, text, a.opts.SummaryMinTokens, a.opts.SummaryMaxTokens)
	if err == nil {
		return summary
	}
	a.summarizeFailures++
	if a.summarizeFailures == 1 {
		logging.WarnWithContext(a.logger, "summarization failed", "summarization_failed",
			logging.Float64("timestamp", timestamp),
			logging.Error(err),
			logging.String(logging.FieldImpact, "summary replaced by the leading text"),
			logging.String(logging.FieldErrorHint, "check the [llm] endpoint and api key"),
		)
	} else {
		a.logger.Debug("summarization failed", logging.Error(err), logging.Int("failures", a.summarizeFailures))
	}
	return textutil.Truncate(text, fallbackSummaryChars, "...")
}

func degraded(text string, timestamp float64) Record {
	return Record{
		Timestamp: timestamp,
		Text:      text,
		Topics:    Topics{Labels: []string{UnknownLabel}, Scores: []float64{1.0}},
		Degraded:  true,
	}
}

// Records returns the successful records in analysis order.
func (a *Analyzer) Records() []Record {
	return slices.Clone(a.records)
}

// Reset drops the kept records and failure counts before a new run.
func (a *Analyzer) Reset() {
	a.records = nil
	a.classifyFailures = 0
	a.summarizeFailures = 0
}

// Failures returns the number of failed classifications and summaries.
func (a *Analyzer) Failures() (classify, summarize int) {
	return a.classifyFailures, a.summarizeFailures
}

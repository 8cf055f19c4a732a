// Package llm provides an OpenRouter chat client used for transcript topic
// classification and summarization.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.ClassifyTopics: score a transcript window against candidate labels.
// Client.Summarize: condense a transcript window within a token budget.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Context cancellation aborts retries immediately.
//
// Callers own the fallback: a failed classification or summary never stops
// video processing.
package llm

package transcript

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cspanlens/internal/fileutil"
	"cspanlens/internal/logging"
	"cspanlens/internal/textutil"
)

const cacheVersion = 1

// CacheEntry is the on-disk form of a cached transcript.
type CacheEntry struct {
	Version  int       `json:"version"`
	Key      string    `json:"key"`
	Source   string    `json:"source"`
	Model    string    `json:"model"`
	Language string    `json:"language"`
	CachedAt time.Time `json:"cached_at"`
	Segments []Segment `json:"segments"`
}

// Cache stores transcripts as one JSON file per recording fingerprint. A
// cache with an empty directory is disabled and every operation is a no-op.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// NewCache returns a cache rooted at dir.
func NewCache(dir string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{
		dir:    strings.TrimSpace(dir),
		logger: logging.NewComponentLogger(logger, "transcript_cache"),
	}
}

// Enabled reports whether the cache has a backing directory.
func (c *Cache) Enabled() bool {
	return c != nil && c.dir != ""
}

// Key derives the cache key for a recording transcribed with the given model
// and language.
func (c *Cache) Key(videoPath, model, language string) (string, error) {
	fingerprint, err := fileutil.Fingerprint(videoPath)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", videoPath, err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n", fingerprint, textutil.SanitizeToken(model), strings.ToLower(strings.TrimSpace(language)))
	return hex.EncodeToString(h.Sum(nil))[:32], nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Load returns the cached entry for key. A missing, unreadable or stale
// entry is reported as a miss.
func (c *Cache) Load(key string) (CacheEntry, bool) {
	if !c.Enabled() || key == "" {
		return CacheEntry{}, false
	}
	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(c.logger, "failed to read transcript cache entry",
				"transcript_cache_read_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
				logging.String(logging.FieldImpact, "recording will be transcribed again"),
			)
		}
		return CacheEntry{}, false
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		logging.WarnWithContext(c.logger, "transcript cache entry is corrupt",
			"transcript_cache_corrupt",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the file or leave it to be overwritten"),
			logging.String(logging.FieldImpact, "recording will be transcribed again"),
		)
		return CacheEntry{}, false
	}
	if entry.Version != cacheVersion || entry.Key != key {
		c.logger.Debug("transcript cache entry stale",
			logging.String("path", path),
			logging.Int("version", entry.Version))
		return CacheEntry{}, false
	}
	return entry, true
}

// Store persists entry under its key.
func (c *Cache) Store(entry CacheEntry) error {
	if !c.Enabled() {
		return nil
	}
	if strings.TrimSpace(entry.Key) == "" {
		return errors.New("transcript cache key cannot be empty")
	}
	entry.Version = cacheVersion
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcript cache entry: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.entryPath(entry.Key), data, 0o644); err != nil {
		return fmt.Errorf("persist transcript cache entry: %w", err)
	}
	c.logger.Debug("cached transcript",
		logging.String("key", entry.Key),
		logging.String("source", entry.Source),
		logging.Int("segments", len(entry.Segments)))
	return nil
}

// CachedTranscriber consults a Cache before delegating to another
// Transcriber and stores fresh results.
type CachedTranscriber struct {
	inner    Transcriber
	cache    *Cache
	model    string
	language string
}

// NewCachedTranscriber wraps inner. model and language are folded into the
// cache key so changing either forces a fresh transcription.
func NewCachedTranscriber(inner Transcriber, cache *Cache, model, language string) *CachedTranscriber {
	return &CachedTranscriber{inner: inner, cache: cache, model: model, language: language}
}

// Transcribe returns cached segments for videoPath when present, otherwise
// runs the wrapped transcriber.
func (t *CachedTranscriber) Transcribe(ctx context.Context, videoPath string) ([]Segment, error) {
	if !t.cache.Enabled() {
		return t.inner.Transcribe(ctx, videoPath)
	}
	logger := t.cache.logger

	key, err := t.cache.Key(videoPath, t.model, t.language)
	if err != nil {
		logger.Debug("transcript cache bypassed",
			logging.String(logging.FieldDecisionType, "transcript_cache"),
			logging.String("decision_result", "bypass"),
			logging.Error(err))
		return t.inner.Transcribe(ctx, videoPath)
	}

	if entry, ok := t.cache.Load(key); ok {
		logger.Info("transcript cache hit",
			logging.String(logging.FieldDecisionType, "transcript_cache"),
			logging.String("decision_result", "hit"),
			logging.String("key", key),
			logging.Int("segments", len(entry.Segments)),
			logging.String("cached_at", entry.CachedAt.Format(time.RFC3339)))
		return entry.Segments, nil
	}
	logger.Info("transcript cache miss",
		logging.String(logging.FieldDecisionType, "transcript_cache"),
		logging.String("decision_result", "miss"),
		logging.String("key", key))

	segments, err := t.inner.Transcribe(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	if err := t.cache.Store(CacheEntry{
		Key:      key,
		Source:   videoPath,
		Model:    t.model,
		Language: t.language,
		Segments: segments,
	}); err != nil {
		logging.WarnWithContext(logger, "failed to store transcript in cache",
			"transcript_cache_store_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the cache directory"),
			logging.String(logging.FieldImpact, "next run over this recording transcribes again"),
		)
	}
	return segments, nil
}

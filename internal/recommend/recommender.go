package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/emotune/internal/observability"
)

// ErrProviderUnavailable is returned when no catalog is configured or a catalog
// call fails. An empty result set is not an error.
var ErrProviderUnavailable = errors.New("recommendation provider unavailable")

// SearchProvider searches the music catalog for tracks.
type SearchProvider interface {
	SearchTracks(ctx context.Context, query, market string, limit int) ([]CatalogTrack, error)
}

const (
	attemptPrimary  = "primary"
	attemptFallback = "fallback"

	defaultLimit   = 10
	defaultTimeout = 10 * time.Second
)

// Recommender turns an emotion and a language into a track list.
type Recommender struct {
	provider SearchProvider
	limit    int
	timeout  time.Duration
}

// NewRecommender builds a Recommender. provider may be nil, in which case every
// call fails with ErrProviderUnavailable.
func NewRecommender(provider SearchProvider, limit int, timeout time.Duration) *Recommender {
	if limit <= 0 {
		limit = defaultLimit
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Recommender{provider: provider, limit: limit, timeout: timeout}
}

// Available reports whether a catalog provider is configured.
func (r *Recommender) Available() bool {
	return r != nil && r.provider != nil
}

// Recommend searches "genre:<genre> <Language>" first and, only when that yields
// no usable tracks, "<Language> <emotion> songs". Any provider error fails the
// whole call, even if the first search already succeeded.
func (r *Recommender) Recommend(ctx context.Context, emotion, languageCode string) ([]Track, error) {
	if !r.Available() {
		return nil, ErrProviderUnavailable
	}

	lang := ResolveLanguage(languageCode)
	emotionLower := strings.ToLower(emotion)
	genre := ResolveGenre(emotionLower)

	primary := fmt.Sprintf("genre:%s %s", genre, lang.Name)
	tracks, err := r.search(ctx, attemptPrimary, primary, lang.Market)
	if err != nil {
		return nil, err
	}
	if len(tracks) > 0 {
		return tracks, nil
	}

	fallback := fmt.Sprintf("%s %s songs", lang.Name, emotionLower)
	slog.Info("no tracks for primary query, trying broader search",
		"primary", primary, "fallback", fallback, "market", lang.Market)

	tracks, err = r.search(ctx, attemptFallback, fallback, lang.Market)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		slog.Warn("no tracks found", "primary", primary, "fallback", fallback, "market", lang.Market)
	}
	return tracks, nil
}

func (r *Recommender) search(ctx context.Context, attempt, query, market string) ([]Track, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	slog.Debug("catalog search", "attempt", attempt, "query", query, "market", market)

	start := time.Now()
	items, err := r.provider.SearchTracks(ctx, query, market, r.limit)
	observability.CatalogSearchDuration.WithLabelValues(attempt).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.CatalogSearches.WithLabelValues(attempt, "error").Inc()
		return nil, fmt.Errorf("%w: search %q: %w", ErrProviderUnavailable, query, err)
	}

	tracks := normalizeTracks(items)
	outcome := "hit"
	if len(tracks) == 0 {
		outcome = "empty"
	}
	observability.CatalogSearches.WithLabelValues(attempt, outcome).Inc()

	return tracks, nil
}

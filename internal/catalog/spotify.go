package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/your-org/emotune/internal/config"
	"github.com/your-org/emotune/internal/recommend"
)

// SpotifyClient searches the Spotify catalog with app-only (client credentials)
// authorization.
type SpotifyClient struct {
	client  *spotify.Client
	breaker *gobreaker.CircuitBreaker[[]recommend.CatalogTrack]
}

// compile-time interface assertion
var _ recommend.SearchProvider = (*SpotifyClient)(nil)

// NewSpotifyClient builds a client whose HTTP transport fetches and refreshes the
// app token on demand. No request is made until the first search.
func NewSpotifyClient(ctx context.Context, cfg config.SpotifyConfig) (*SpotifyClient, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("spotify client credentials not configured")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	baseURL := cfg.APIBaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client := spotify.New(creds.Client(ctx), spotify.WithBaseURL(baseURL))

	breaker := gobreaker.NewCircuitBreaker[[]recommend.CatalogTrack](gobreaker.Settings{
		Name:    "spotify-search",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &SpotifyClient{client: client, breaker: breaker}, nil
}

// SearchTracks runs a track search restricted to market. While the breaker is
// open it fails immediately with gobreaker.ErrOpenState.
func (c *SpotifyClient) SearchTracks(ctx context.Context, query, market string, limit int) ([]recommend.CatalogTrack, error) {
	return c.breaker.Execute(func() ([]recommend.CatalogTrack, error) {
		res, err := c.client.Search(ctx, query, spotify.SearchTypeTrack,
			spotify.Market(market),
			spotify.Limit(limit),
		)
		if err != nil {
			return nil, fmt.Errorf("spotify search: %w", err)
		}
		if res.Tracks == nil {
			return nil, nil
		}
		return mapTracks(res.Tracks.Tracks), nil
	})
}

func mapTracks(items []spotify.FullTrack) []recommend.CatalogTrack {
	out := make([]recommend.CatalogTrack, 0, len(items))
	for _, t := range items {
		ct := recommend.CatalogTrack{
			ID:          string(t.ID),
			Name:        t.Name,
			ExternalURL: t.ExternalURLs["spotify"],
			PreviewURL:  t.PreviewURL,
		}
		for _, a := range t.Artists {
			ct.Artists = append(ct.Artists, a.Name)
		}
		for _, img := range t.Album.Images {
			ct.ImageURLs = append(ct.ImageURLs, img.URL)
		}
		out = append(out, ct)
	}
	return out
}

package recommend

import "fmt"

const (
	unknownValue  = "Unknown"
	embedTemplate = "https://open.spotify.com/embed/track/%s"
)

// CatalogTrack is one raw search hit as returned by the catalog provider.
type CatalogTrack struct {
	ID          string
	Name        string
	Artists     []string
	ExternalURL string
	PreviewURL  string
	ImageURLs   []string
}

// Track is the normalized recommendation returned to clients. Pointer fields are
// null in JSON when the catalog has no value.
type Track struct {
	Name       string  `json:"name"`
	Artist     string  `json:"artist"`
	SpotifyURL *string `json:"spotify_url"`
	Image      *string `json:"image"`
	PreviewURL *string `json:"preview_url"`
	EmbedURL   *string `json:"embed_url"`
}

// normalizeTracks maps raw hits to Tracks, preserving order. Hits without an
// artist list are dropped.
func normalizeTracks(items []CatalogTrack) []Track {
	out := make([]Track, 0, len(items))
	for _, it := range items {
		if len(it.Artists) == 0 {
			continue
		}

		t := Track{
			Name:       orUnknown(it.Name),
			Artist:     orUnknown(it.Artists[0]),
			SpotifyURL: optional(it.ExternalURL),
			PreviewURL: optional(it.PreviewURL),
		}
		if len(it.ImageURLs) > 0 {
			t.Image = optional(it.ImageURLs[0])
		}
		if it.ID != "" {
			embed := fmt.Sprintf(embedTemplate, it.ID)
			t.EmbedURL = &embed
		}
		out = append(out, t)
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

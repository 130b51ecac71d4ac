package dto

import "github.com/your-org/emotune/internal/recommend"

type RecommendationsResponse struct {
	Tracks []recommend.Track `json:"tracks"`
}

type LanguagesResponse struct {
	Languages []recommend.Language `json:"languages"`
}

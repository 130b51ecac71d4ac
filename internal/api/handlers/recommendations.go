package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/emotune/internal/recommend"
	"github.com/your-org/emotune/pkg/dto"
)

// Recommender is the subset of *recommend.Recommender the handler calls.
type Recommender interface {
	Available() bool
	Recommend(ctx context.Context, emotion, languageCode string) ([]recommend.Track, error)
}

type RecommendationHandler struct {
	rec Recommender
}

func NewRecommendationHandler(rec Recommender) *RecommendationHandler {
	return &RecommendationHandler{rec: rec}
}

func (h *RecommendationHandler) Get(c *gin.Context) {
	if h.rec == nil || !h.rec.Available() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Spotify service unavailable"})
		return
	}

	emotion := c.Param("emotion")
	language := c.Param("language")

	tracks, err := h.rec.Recommend(c.Request.Context(), emotion, language)
	if err != nil {
		if errors.Is(err, recommend.ErrProviderUnavailable) {
			slog.Warn("recommendations unavailable", "emotion", emotion, "language", language, "error", err)
		} else {
			slog.Error("recommendations", "emotion", emotion, "language", language, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch recommendations."})
		return
	}

	c.JSON(http.StatusOK, dto.RecommendationsResponse{Tracks: tracks})
}

func (h *RecommendationHandler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, dto.LanguagesResponse{Languages: recommend.Languages()})
}

package dto

import (
	"time"

	"github.com/google/uuid"
)

// DetectEmotionRequest is the JSON form of POST /detect-emotion. Image holds
// base64 data, optionally with a data URL header.
type DetectEmotionRequest struct {
	Image string `json:"image"`
}

type DetectEmotionResponse struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

const (
	SourceUpload = "upload"
	SourceBase64 = "base64"
)

// DetectionEvent is published after each successful detection.
type DetectionEvent struct {
	ID         uuid.UUID `json:"id"`
	Emotion    string    `json:"emotion"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CaptureKey string    `json:"capture_key,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type string         `json:"type"` // emotion_detected
	Data DetectionEvent `json:"data"`
}

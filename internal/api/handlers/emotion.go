package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/emotune/internal/observability"
	"github.com/your-org/emotune/internal/vision"
	"github.com/your-org/emotune/pkg/dto"
)

const sideChannelTimeout = 5 * time.Second

// CaptureArchive stores detection inputs (MinIO).
type CaptureArchive interface {
	PutCapture(ctx context.Context, data []byte, contentType, emotion string, confidence float64, at time.Time) (string, error)
}

// DetectionPublisher receives an event after each successful detection.
type DetectionPublisher interface {
	PublishDetection(ctx context.Context, evt dto.DetectionEvent) error
}

type EmotionHandler struct {
	classifier vision.Classifier
	maxBytes   int64
	// Archive and Publisher are optional.
	Archive   CaptureArchive
	Publisher DetectionPublisher
}

// NewEmotionHandler builds the handler. classifier may be nil when the model
// failed to load; every request then answers 500.
func NewEmotionHandler(classifier vision.Classifier, maxBytes int64) *EmotionHandler {
	return &EmotionHandler{classifier: classifier, maxBytes: maxBytes}
}

func (h *EmotionHandler) Detect(c *gin.Context) {
	if h.classifier == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Model is not loaded"})
		return
	}

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	data, source, status, msg := h.readImage(c)
	if status != 0 {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	result, err := vision.Detect(h.classifier, data)
	if err != nil {
		if errors.Is(err, vision.ErrInvalidImageData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data"})
			return
		}
		slog.Error("detect emotion", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process image."})
		return
	}

	observability.EmotionsDetected.WithLabelValues(string(result.Label)).Inc()
	slog.Debug("emotion detected", "emotion", result.Label, "confidence", result.Confidence, "source", source)

	h.emit(c.Request.Context(), data, source, result)

	c.JSON(http.StatusOK, dto.DetectEmotionResponse{
		Emotion:    string(result.Label),
		Confidence: result.Confidence,
	})
}

// readImage returns the raw image bytes from a multipart "image" file or a JSON
// {"image": "<base64>"} body. A non-zero status means the request is rejected.
func (h *EmotionHandler) readImage(c *gin.Context) (data []byte, source string, status int, msg string) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			if isTooLarge(err) {
				return nil, "", http.StatusRequestEntityTooLarge, "Image too large"
			}
			return nil, "", http.StatusBadRequest, "No image data"
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", http.StatusBadRequest, "No image data"
		}
		defer f.Close()

		data, err = io.ReadAll(f)
		if err != nil {
			return nil, "", http.StatusBadRequest, "No image data"
		}
		return data, dto.SourceUpload, 0, ""
	}

	var req dto.DetectEmotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isTooLarge(err) {
			return nil, "", http.StatusRequestEntityTooLarge, "Image too large"
		}
		return nil, "", http.StatusBadRequest, "No image data"
	}
	if req.Image == "" {
		return nil, "", http.StatusBadRequest, "No image data"
	}

	data, err := vision.DecodeBase64Image(req.Image)
	if err != nil {
		return nil, "", http.StatusBadRequest, "Invalid base64"
	}
	return data, dto.SourceBase64, 0, ""
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// emit archives the capture and publishes the detection. Failures are logged and
// never affect the response.
func (h *EmotionHandler) emit(ctx context.Context, data []byte, source string, result vision.Classification) {
	if h.Archive == nil && h.Publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
	defer cancel()

	now := time.Now().UTC()
	evt := dto.DetectionEvent{
		ID:         uuid.New(),
		Emotion:    string(result.Label),
		Confidence: result.Confidence,
		Source:     source,
		DetectedAt: now,
	}

	if h.Archive != nil {
		key, err := h.Archive.PutCapture(ctx, data, http.DetectContentType(data), evt.Emotion, evt.Confidence, now)
		if err != nil {
			slog.Warn("archive capture", "error", err)
		} else {
			evt.CaptureKey = key
		}
	}

	if h.Publisher != nil {
		if err := h.Publisher.PublishDetection(ctx, evt); err != nil {
			slog.Warn("publish detection", "error", err, "event_id", evt.ID)
		}
	}
}

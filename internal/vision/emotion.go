package vision

import (
	"errors"
	"fmt"
)

// Emotion is one of the seven classes produced by the facial expression model.
type Emotion string

const (
	Angry    Emotion = "Angry"
	Disgust  Emotion = "Disgust"
	Fear     Emotion = "Fear"
	Happy    Emotion = "Happy"
	Neutral  Emotion = "Neutral"
	Sad      Emotion = "Sad"
	Surprise Emotion = "Surprise"
)

// Labels is the model output order. Index i of the probability vector belongs to
// Labels[i]; it must only change together with the model file.
var Labels = []Emotion{Angry, Disgust, Fear, Happy, Neutral, Sad, Surprise}

// ErrModelContractMismatch is returned when the classifier output does not line up
// with Labels.
var ErrModelContractMismatch = errors.New("model output does not match label set")

// Classification is the decided label and the probability the model gave it.
type Classification struct {
	Label      Emotion `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Decide picks the most probable label. Ties go to the lowest index.
func Decide(probs []float32) (Classification, error) {
	if len(probs) != len(Labels) {
		return Classification{}, fmt.Errorf("%w: got %d scores, want %d",
			ErrModelContractMismatch, len(probs), len(Labels))
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	return Classification{
		Label:      Labels[best],
		Confidence: float64(probs[best]),
	}, nil
}

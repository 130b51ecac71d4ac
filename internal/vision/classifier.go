package vision

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/emotune/internal/config"
	"github.com/your-org/emotune/internal/observability"
)

// Classifier turns a preprocessed face tensor into one probability per label.
type Classifier interface {
	Predict(t Tensor) ([]float32, error)
}

// ONNXClassifier runs the facial expression CNN through ONNX Runtime.
//
// The session owns a single pair of input/output tensors, so Predict calls are
// serialized.
type ONNXClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXClassifier loads the expression model. The ONNX Runtime environment must
// already be initialized.
func NewONNXClassifier(cfg config.ClassifierConfig) (*ONNXClassifier, error) {
	inputShape := ort.NewShape(1, InputSize, InputSize, 1)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(len(Labels)))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create classifier session: %w", err)
	}

	slog.Info("emotion model loaded", "path", cfg.ModelPath)

	return &ONNXClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict runs one inference and returns a copy of the softmax output.
func (c *ONNXClassifier) Predict(t Tensor) ([]float32, error) {
	if len(t.Data) != InputSize*InputSize {
		return nil, fmt.Errorf("unexpected tensor size %d", len(t.Data))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	copy(c.inputTensor.GetData(), t.Data)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("run classifier: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())

	out := c.outputTensor.GetData()
	probs := make([]float32, len(out))
	copy(probs, out)
	return probs, nil
}

func (c *ONNXClassifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
}

// Detect runs the full image → label path.
func Detect(c Classifier, imageData []byte) (Classification, error) {
	start := time.Now()
	tensor, err := Preprocess(imageData)
	if err != nil {
		return Classification{}, err
	}
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	probs, err := c.Predict(tensor)
	if err != nil {
		return Classification{}, fmt.Errorf("predict: %w", err)
	}

	return Decide(probs)
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/emotune/pkg/dto"
)

// DetectionHandler processes one decoded detection event.
type DetectionHandler func(ctx context.Context, evt dto.DetectionEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeDetections starts consuming new detection events in the background
// until ctx is done. Malformed messages are terminated, handler errors are
// redelivered up to MaxDeliver times.
func (c *Consumer) ConsumeDetections(ctx context.Context, consumerName string, handler DetectionHandler) error {
	stream, err := c.js.Stream(ctx, DetectionsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", DetectionsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: DetectionsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch detections error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				handleMessage(ctx, msg, handler)
			}
		}
	}()

	slog.Info("detection consumer started", "consumer", consumerName)
	return nil
}

func handleMessage(ctx context.Context, msg jetstream.Msg, handler DetectionHandler) {
	var evt dto.DetectionEvent
	if err := json.Unmarshal(msg.Data(), &evt); err != nil {
		slog.Error("decode detection", "error", err, "subject", msg.Subject())
		_ = msg.Term()
		return
	}

	if err := handler(ctx, evt); err != nil {
		slog.Error("process detection error", "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Close() {
	c.nc.Close()
}

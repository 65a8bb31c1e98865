package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSender publishes notification requests to the notifications topic.
// The external mailer consumes the topic and performs the actual delivery;
// from this service's point of view a successful produce is the one attempt.
type KafkaSender struct {
	client *kgo.Client
	topic  string
}

// kafkaPayload is the JSON record published per notification.
type kafkaPayload struct {
	Recipients []string          `json:"recipients"`
	TemplateID string            `json:"template_id"`
	ArtifactID string            `json:"artifact_id"`
	Payload    map[string]string `json:"payload,omitempty"`
	QueuedAt   string            `json:"queued_at"`
}

// NewKafkaSender connects to the brokers and ensures the topic exists. A
// missing topic at startup is an operator error worth failing fast on.
func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin := kadm.NewClient(client)
	topics, err := admin.ListTopics(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("list kafka topics: %w", err)
	}
	if !topics.Has(topic) {
		if _, err := admin.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
			client.Close()
			return nil, fmt.Errorf("create notification topic: %w", err)
		}
	}

	return &KafkaSender{client: client, topic: topic}, nil
}

// Send produces one record, synchronously, within the caller's deadline.
func (s *KafkaSender) Send(ctx context.Context, req Request) error {
	value, err := json.Marshal(kafkaPayload{
		Recipients: req.Recipients,
		TemplateID: req.TemplateID,
		ArtifactID: req.ArtifactID.String(),
		Payload:    req.Payload,
		QueuedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		// Key by artifact so one artifact's notifications stay ordered.
		Key:   []byte(req.ArtifactID.String()),
		Value: value,
	}

	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

// Close flushes and releases the producer.
func (s *KafkaSender) Close() {
	s.client.Close()
}

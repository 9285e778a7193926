// Package notifier hands welcome notifications to a delivery channel. Nothing
// here sends e-mail: the Kafka notifier publishes to a topic consumed by a
// mailer, and the log notifier writes the message to the service log.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the JSON payload published for each notification.
type Message struct {
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	HTMLBody string    `json:"html_body"`
	QueuedAt time.Time `json:"queued_at"`
}

// KafkaNotifier publishes notifications to a topic, keyed by recipient so a
// recipient's messages stay ordered within a partition.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	now    func() time.Time
}

// NewKafka connects a producer to the seed brokers. Produce calls wait for all
// in-sync replicas.
func NewKafka(brokers []string, topic string, opts ...kgo.Opt) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka notifier: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka notifier: topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka notifier: %w", err)
	}
	return &KafkaNotifier{client: client, topic: topic, now: time.Now}, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (n *KafkaNotifier) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(n.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, n.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", n.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (n *KafkaNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	value, err := json.Marshal(Message{To: to, Subject: subject, HTMLBody: htmlBody, QueuedAt: n.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(to),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() {
	n.client.Close()
}

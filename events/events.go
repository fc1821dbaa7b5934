// Package events publishes domain events about collected responses.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/mbolis/survey-builder/log"
	"github.com/segmentio/kafka-go"
)

const TypeResponseSubmitted = "response.submitted"

type ResponseSubmitted struct {
	ResponseID    int64     `json:"response_id"`
	FormID        int64     `json:"form_id"`
	FormSlug      string    `json:"form_slug"`
	Answers       int       `json:"answers"`
	RecordID      *int64    `json:"record_id,omitempty"`
	IsNewIdentity bool      `json:"is_new_identity"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type Publisher interface {
	ResponseSubmitted(ctx context.Context, ev ResponseSubmitted) error
	Close() error
}

// Kafka writes events to a topic, keyed by form so that a form's events stay
// ordered within a partition.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
	}
	log.Infof("events: publishing to %s on %v", topic, brokers)
	return &Kafka{writer: writer}
}

func (k *Kafka) ResponseSubmitted(ctx context.Context, ev ResponseSubmitted) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.FormID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeResponseSubmitted)},
		},
	})
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) ResponseSubmitted(context.Context, ResponseSubmitted) error { return nil }
func (Nop) Close() error                                               { return nil }

// New returns a Kafka publisher, or Nop when no brokers are configured.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafka(brokers, topic)
}

// Memory keeps published events, for tests.
type Memory struct {
	mu     sync.Mutex
	Events []ResponseSubmitted
}

func (m *Memory) ResponseSubmitted(_ context.Context, ev ResponseSubmitted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

func (m *Memory) Published() []ResponseSubmitted {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ResponseSubmitted(nil), m.Events...)
}

func (*Memory) Close() error { return nil }

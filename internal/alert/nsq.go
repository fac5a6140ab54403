package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
)

// Message is the body published for every alert.
type Message struct {
	ID            string   `json:"id"`
	Role          string   `json:"role"`
	Timestamp     int64    `json:"timestamp"`
	ShoulderAngle *float64 `json:"shoulderAngle,omitempty"`
	NeckAngle     float64  `json:"neckAngle"`
	BadSince      int64    `json:"badSince,omitempty"`
	SnapshotPath  string   `json:"snapshotPath,omitempty"`
}

func NewMessage(ev Event, withSnapshot bool) *Message {
	msg := &Message{
		ID:            ev.ID,
		Role:          ev.Role.String(),
		Timestamp:     ev.FiredAt.UnixNano(),
		ShoulderAngle: ev.Sample.Shoulder,
		NeckAngle:     ev.Sample.Neck,
	}
	if ev.Verdict.BadSince != nil {
		msg.BadSince = ev.Verdict.BadSince.UnixNano()
	}
	if withSnapshot && ev.Frame != nil {
		msg.SnapshotPath = ev.SnapshotKey()
	}
	return msg
}

type Publisher interface {
	Publish(topic string, body []byte) error
}

var _ Publisher = (*nsq.Producer)(nil)

// NSQSink publishes alerts to a topic for other services to pick up.
type NSQSink struct {
	pub          Publisher
	topic        string
	withSnapshot bool
}

func NewNSQSink(pub Publisher, topic string, withSnapshot bool) *NSQSink {
	return &NSQSink{pub: pub, topic: topic, withSnapshot: withSnapshot}
}

func NewNSQProducer(addr string) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer failed: %w", err)
	}
	return producer, nil
}

func (s *NSQSink) PlayAlert(ctx context.Context, ev Event) error {
	body, err := json.Marshal(NewMessage(ev, s.withSnapshot))
	if err != nil {
		return err
	}
	if err := s.pub.Publish(s.topic, body); err != nil {
		return fmt.Errorf("publish alert to nsq topic %s: %w", s.topic, err)
	}
	return nil
}

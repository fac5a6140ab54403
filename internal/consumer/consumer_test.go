package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postureguard/internal/alert"
)

type fakeDelegate struct {
	finished int
	requeued int
}

func (d *fakeDelegate) OnFinish(m *nsq.Message)                                     { d.finished++ }
func (d *fakeDelegate) OnRequeue(m *nsq.Message, delay time.Duration, backoff bool) { d.requeued++ }
func (d *fakeDelegate) OnTouch(m *nsq.Message)                                      {}

func newMessage(t *testing.T, body []byte) (*nsq.Message, *fakeDelegate) {
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	m := nsq.NewMessage(id, body)
	d := &fakeDelegate{}
	m.Delegate = d
	return m, d
}

func testConsumer(t *testing.T, h Handler) *Consumer {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	c, err := NewConsumer(Config{NSQDAddrs: []string{"127.0.0.1:4150"}, Topic: "posture_alert"}, h, logrus.NewEntry(l))
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	return c
}

func TestHandleMessageDecodesAlert(t *testing.T) {
	var got *alert.Message
	c := testConsumer(t, func(ctx context.Context, msg *alert.Message) error {
		got = msg
		return nil
	})

	body, err := json.Marshal(alert.Message{ID: "a-1", Role: "frontal", NeckAngle: 52.5})
	require.NoError(t, err)
	m, d := newMessage(t, body)

	require.NoError(t, c.HandleMessage(m))
	require.NotNil(t, got)
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, 52.5, got.NeckAngle)
	assert.Equal(t, 1, d.finished)
}

func TestHandleMessageDropsMalformedBody(t *testing.T) {
	called := false
	c := testConsumer(t, func(ctx context.Context, msg *alert.Message) error {
		called = true
		return nil
	})

	m, d := newMessage(t, []byte("{not json"))
	assert.NoError(t, c.HandleMessage(m))
	assert.False(t, called)
	assert.Equal(t, 1, d.finished)
	assert.Zero(t, d.requeued)
}

func TestHandleMessageRequeuesOnHandlerError(t *testing.T) {
	c := testConsumer(t, func(ctx context.Context, msg *alert.Message) error {
		return errors.New("stdout closed")
	})

	m, d := newMessage(t, []byte(`{"id":"a-2","role":"lateral"}`))
	assert.Error(t, c.HandleMessage(m))
	assert.Equal(t, 1, d.requeued)
	assert.Zero(t, d.finished)
}

func TestFormatLine(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 3, 0, time.UTC)
	shoulder := 80.0
	line := FormatLine(&alert.Message{
		Role:          "frontal",
		Timestamp:     at.UnixNano(),
		ShoulderAngle: &shoulder,
		NeckAngle:     40,
		BadSince:      at.Add(-3 * time.Second).UnixNano(),
		SnapshotPath:  "alerts/2025/03/10/frontal/a-1.jpg",
	})
	assert.Contains(t, line, "frontal")
	assert.Contains(t, line, "neck=40.0")
	assert.Contains(t, line, "shoulder=80.0")
	assert.Contains(t, line, "badFor=3s")
	assert.Contains(t, line, "snapshot=alerts/2025/03/10/frontal/a-1.jpg")

	line = FormatLine(&alert.Message{Role: "lateral", Timestamp: at.UnixNano(), NeckAngle: 12})
	assert.NotContains(t, line, "shoulder=")
	assert.NotContains(t, line, "badFor=")
}

package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"

	"postureguard/internal/alert"
	"postureguard/pkg/log"
)

const defaultChannel = "postureguard-tail"

type Config struct {
	NSQDAddrs []string
	Topic     string
	// Channel defaults to an ephemeral channel so a tail never leaves a backlog behind.
	Channel string
}

// Handler receives every decoded alert. Returning an error requeues the message.
type Handler func(ctx context.Context, msg *alert.Message) error

// Consumer reads alert messages published by the engine's NSQ sink.
type Consumer struct {
	conf     Config
	ctx      context.Context
	cancel   context.CancelFunc
	consumer *nsq.Consumer
	handler  Handler
	wg       sync.WaitGroup
	logger   *logrus.Entry
}

func NewConsumer(conf Config, handler Handler, logger *logrus.Entry) (*Consumer, error) {
	if conf.Channel == "" {
		conf.Channel = defaultChannel + "#ephemeral"
	}
	ctx, cancel := context.WithCancel(context.Background())

	config := nsq.NewConfig()
	config.MsgTimeout = time.Minute
	config.MaxInFlight = 10
	config.MaxAttempts = 2

	consumer, err := nsq.NewConsumer(conf.Topic, conf.Channel, config)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}

	c := &Consumer{
		conf:     conf,
		ctx:      ctx,
		cancel:   cancel,
		consumer: consumer,
		handler:  handler,
		logger:   log.WithComponent(logger, "consumer"),
	}
	consumer.AddHandler(c)
	return c, nil
}

func (c *Consumer) HandleMessage(message *nsq.Message) error {
	message.DisableAutoResponse()

	var msg alert.Message
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		// a body that does not decode will never decode
		c.logger.WithError(err).Error("drop malformed alert message")
		message.Finish()
		return nil
	}

	if err := c.handler(c.ctx, &msg); err != nil {
		c.logger.WithError(err).WithField("alertId", msg.ID).Warn("handle alert message")
		message.Requeue(-1)
		return err
	}
	message.Finish()
	return nil
}

func (c *Consumer) Start() error {
	c.logger.Infof("consuming topic %s on %s", c.conf.Topic, strings.Join(c.conf.NSQDAddrs, ","))

	if err := c.consumer.ConnectToNSQDs(c.conf.NSQDAddrs); err != nil {
		return fmt.Errorf("failed to connect to NSQs: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-c.ctx.Done()
		c.consumer.Stop()
		<-c.consumer.StopChan
	}()
	return nil
}

func (c *Consumer) Stop() {
	c.cancel()
	c.wg.Wait()
}

// FormatLine renders an alert message as a single log line.
func FormatLine(msg *alert.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-7s neck=%.1f", time.Unix(0, msg.Timestamp).Format(time.RFC3339), msg.Role, msg.NeckAngle)
	if msg.ShoulderAngle != nil {
		fmt.Fprintf(&b, " shoulder=%.1f", *msg.ShoulderAngle)
	}
	if msg.BadSince > 0 {
		fmt.Fprintf(&b, " badFor=%s", time.Duration(msg.Timestamp-msg.BadSince).Round(100*time.Millisecond))
	}
	if msg.SnapshotPath != "" {
		fmt.Fprintf(&b, " snapshot=%s", msg.SnapshotPath)
	}
	return b.String()
}

// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxDialDelay caps the backoff between dial attempts.
const MaxDialDelay = 60 * time.Second

// DialOptions configures DialWithRetry.
type DialOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
}

// DialWithRetry connects to the broker with exponential backoff. It gives
// up early if ctx is cancelled.
func DialWithRetry(ctx context.Context, opts DialOptions) (*amqp.Connection, error) {
	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error

	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				slog.Info("amqp connected", "attempt", i)
			}
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}

		sleep := dialBackoff(opts.Delay, i)
		slog.Warn("amqp dial failed",
			"attempt", i,
			"sleep", sleep,
			"error", err,
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("connect to AMQP broker after %d attempts: %w", attempts, lastErr)
}

// dialBackoff returns delay * 2^(attempt-1), capped at MaxDialDelay.
func dialBackoff(delay time.Duration, attempt int) time.Duration {
	sleep := delay * time.Duration(math.Pow(2, float64(attempt-1)))
	if sleep > MaxDialDelay || sleep <= 0 {
		sleep = MaxDialDelay
	}
	return sleep
}

// publishChannel is the part of an AMQP channel the publisher uses.
type publishChannel interface {
	Confirm(noWait bool) error
	PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// amqpChannel adapts *amqp.Channel to publishChannel.
type amqpChannel struct {
	ch *amqp.Channel
}

func (c amqpChannel) Confirm(noWait bool) error { return c.ch.Confirm(noWait) }

func (c amqpChannel) Close() error { return c.ch.Close() }

func (c amqpChannel) PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	conf, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return conf, nil
}

// AMQPPublisher publishes envelopes to a durable topic exchange with
// publisher confirms. The routing key is the event type.
type AMQPPublisher struct {
	open     func() (publishChannel, error)
	closer   func() error
	exchange string
}

// NewAMQPPublisher declares the exchange on conn.
func NewAMQPPublisher(conn *amqp.Connection, exchange string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	open := func() (publishChannel, error) {
		c, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return amqpChannel{ch: c}, nil
	}
	return &AMQPPublisher{open: open, closer: conn.Close, exchange: exchange}, nil
}

// Publish sends env as a persistent message and waits for the broker ack.
// Each publish uses its own channel.
func (p *AMQPPublisher) Publish(ctx context.Context, env Envelope) error {
	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable confirms: %w", err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msgID := env.Meta.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	cid := msgID
	if env.Meta.CorrelationID != nil {
		cid = *env.Meta.CorrelationID
	}

	conf, err := ch.PublishConfirmed(ctx, p.exchange, env.Meta.Type, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msgID,
		CorrelationId: cid,
		Type:          env.Meta.Type,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", env.Meta.Type, err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", msgID)
	}

	slog.Info("published event",
		"event_id", msgID,
		"type", env.Meta.Type,
		"exchange", p.exchange,
	)
	return nil
}

// Close closes the broker connection.
func (p *AMQPPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

// Package amqp publishes snapshot load outcomes to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"balances/internal/log"
	"balances/internal/view"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type dialFunc func(url, exchange string) (channel, io.Closer, error)

// Publisher sends one LoadEvent per finished load. A broken connection is
// redialed lazily with exponential backoff; repeated failures open a circuit
// breaker so a dead broker costs nothing on the load path.
type Publisher struct {
	url          string
	exchangeName string
	routingKey   string
	logger       *log.Logger
	dial         dialFunc
	now          func() time.Time

	mu           sync.Mutex
	ch           channel
	conn         io.Closer
	dialAttempts int
	nextDial     time.Time
	lastFailure  time.Time

	failureCount int64
	state        int32
}

// NewPublisher connects to url and declares exchangeName as a durable topic
// exchange.
func NewPublisher(url, exchangeName, routingKey string, logger *log.Logger) (*Publisher, error) {
	p := newPublisher(url, exchangeName, routingKey, logger, dialBroker)
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	p.logger.Info("Connected to AMQP broker",
		"exchange", exchangeName,
		"routing_key", routingKey)
	return p, nil
}

func newPublisher(url, exchangeName, routingKey string, logger *log.Logger, dial dialFunc) *Publisher {
	if logger == nil {
		logger = log.Discard()
	}
	return &Publisher{
		url:          url,
		exchangeName: exchangeName,
		routingKey:   routingKey,
		logger:       logger.WithComponent(log.ComponentAMQP),
		dial:         dial,
		now:          time.Now,
	}
}

func dialBroker(url, exchange string) (channel, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return ch, conn, nil
}

// PublishLoad publishes ev as persistent JSON.
func (p *Publisher) PublishLoad(ctx context.Context, ev LoadEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, dropping %s event", ev.Type)
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		p.recordFailure()
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		pctx,
		p.exchangeName, // exchange
		p.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.Timestamp,
			Type:         ev.Type,
			Body:         body,
		},
	)
	if err != nil {
		p.recordFailure()
		if isConnectionError(err) {
			p.dropChannel()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	p.recordSuccess()

	p.logger.DebugContext(ctx, "Published load event",
		log.FieldOperation, log.OpPublish,
		log.FieldSuccess, ev.Success,
		"exchange", p.exchangeName,
		"routing_key", p.routingKey)
	return nil
}

// LoadHook adapts the publisher to view.WithLoadHook. Publish failures are
// logged and never reach the dashboard.
func (p *Publisher) LoadHook() view.LoadHook {
	return func(ctx context.Context, o view.LoadOutcome) {
		if err := p.PublishLoad(ctx, *NewLoadEvent(o)); err != nil {
			p.logger.WarnContext(ctx, "Load event not published",
				log.NewFields().WithOperation(log.OpPublish).WithError(err).ToSlice()...)
		}
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) channel() (channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		return p.ch, nil
	}
	now := p.now()
	if now.Before(p.nextDial) {
		return nil, fmt.Errorf("not connected to broker, next attempt in %s", p.nextDial.Sub(now).Round(time.Second))
	}

	ch, conn, err := p.dial(p.url, p.exchangeName)
	if err != nil {
		p.nextDial = now.Add(exponentialBackoff(p.dialAttempts))
		p.dialAttempts++
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	p.dialAttempts = 0
	p.nextDial = time.Time{}
	p.ch, p.conn = ch, conn
	return ch, nil
}

func (p *Publisher) dropChannel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}

func (p *Publisher) isCircuitOpen() bool {
	if atomic.LoadInt32(&p.state) != StateOpen {
		return false
	}
	p.mu.Lock()
	last := p.lastFailure
	p.mu.Unlock()

	if p.now().Sub(last) > openTimeout {
		atomic.CompareAndSwapInt32(&p.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (p *Publisher) recordFailure() {
	n := atomic.AddInt64(&p.failureCount, 1)
	p.mu.Lock()
	p.lastFailure = p.now()
	p.mu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&p.state) == StateHalfOpen {
		atomic.StoreInt32(&p.state, StateOpen)
	}
}

func (p *Publisher) recordSuccess() {
	atomic.StoreInt64(&p.failureCount, 0)
	atomic.StoreInt32(&p.state, StateClosed)
}

// exponentialBackoff is 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

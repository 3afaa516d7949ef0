package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
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
	prefetchCount  = 16
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// Client publishes and consumes budget change messages on a durable direct
// exchange bound to a single queue. Connections are re-established lazily and
// a circuit breaker stops publishing after repeated connection failures.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

// NewClient connects and declares the topology. The connection is retried
// with exponential backoff while ctx allows.
func NewClient(ctx context.Context, url, exchangeName, queueName string, logger *slog.Logger) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}

	for attempt := 0; ; attempt++ {
		err := c.connect()
		if err == nil {
			return c, nil
		}
		if attempt >= 3 || !isConnectionError(err) {
			return nil, err
		}
		wait := exponentialBackoff(attempt)
		c.log().WarnContext(ctx, "AMQP connection failed, retrying", "error", err, "attempt", attempt+1, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.conn = conn
	c.channel = channel
	return nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, errDeliveriesClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"connection", "eof", "broken pipe", "closed network", "channel/connection is not open"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// isCircuitOpen reports whether publishing is currently blocked. An open
// circuit moves to half-open once openTimeout has passed since the last failure.
func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("AMQP circuit breaker opened", "component", "amqp", "failures", n)
		}
	}
}

// Healthy reports whether the client has an open channel and a closed circuit.
func (c *Client) Healthy() bool {
	if c.isCircuitOpen() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel != nil && !c.channel.IsClosed()
}

// Ping implements a readiness check over Healthy.
func (c *Client) Ping(context.Context) error {
	if !c.Healthy() {
		return errors.New("amqp: not connected")
	}
	return nil
}

// PublishBudgetChanged publishes a persistent budget change message
func (c *Client) PublishBudgetChanged(ctx context.Context, msg *BudgetChangedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s change: circuit breaker is open", msg.Kind)
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	if err := c.connectLocked(); err != nil {
		c.mu.Unlock()
		c.recordFailure()
		return err
	}
	ch := c.channel
	c.mu.Unlock()

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		pubCtx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.recordFailure()
			c.resetConnection()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.log().DebugContext(ctx, "Published budget change",
		"component", "amqp",
		"kind", msg.Kind,
		"owner_id", msg.OwnerID,
		"version", msg.Version,
		"exchange", c.exchangeName)
	return nil
}

// Handler processes one decoded message. Returning an error requeues it.
type Handler func(context.Context, *BudgetChangedMessage) error

// ConsumeBudgetChanges consumes until ctx is done, reconnecting with backoff
// whenever the broker connection drops.
func (c *Client) ConsumeBudgetChanges(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		delivered, err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}
		if delivered {
			attempt = 0
		}
		c.resetConnection()

		wait := exponentialBackoff(attempt)
		attempt++
		c.log().WarnContext(ctx, "AMQP consumer disconnected, reconnecting", "component", "amqp", "error", err, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler) (bool, error) {
	c.mu.Lock()
	if err := c.connectLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	ch := c.channel
	c.mu.Unlock()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return false, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	c.log().InfoContext(ctx, "Started consuming budget changes", "component", "amqp", "queue", c.queueName)

	delivered := false
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return delivered, errDeliveriesClosed
			}
			delivered = true
			c.handleDelivery(ctx, d, handler)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	dispatch(ctx, c.log(), d.Body, d, handler)
}

// dispatch decodes body and acknowledges it: malformed messages are dropped,
// handler failures are requeued.
func dispatch(ctx context.Context, logger *slog.Logger, body []byte, ack acknowledger, handler Handler) {
	msg, err := BudgetChangedMessageFromJSON(body)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping malformed budget change", "component", "amqp", "error", err)
		ack.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to handle budget change",
			"component", "amqp",
			"error", err,
			"kind", msg.Kind,
			"owner_id", msg.OwnerID)
		ack.Nack(false, true)
		return
	}
	ack.Ack(false)
}

func (c *Client) resetConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

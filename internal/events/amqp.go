package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/codepractice/internal/metrics"
)

var errConnectionClosed = errors.New("connection closed")

// Connection manages the broker connection with automatic reconnection
type Connection struct {
	url        string
	conn       *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	closed     bool
	done       chan struct{} // closed by Close
	reconnects atomic.Int64
}

// NewConnection dials the broker and declares the event queues
func NewConnection(url string) (*Connection, error) {
	c := newConnection(url)
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newConnection(url string) *Connection {
	return &Connection{url: url, done: make(chan struct{})}
}

func (c *Connection) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// connect dials under the lock, so it cannot race a Close
func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	var err error
	c.conn, err = amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := c.declareQueues(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return err
	}

	go c.handleReconnect(c.conn.NotifyClose(make(chan *amqp.Error, 1)))

	slog.Info("connected to RabbitMQ", "url", sanitizeURL(c.url))
	return nil
}

func (c *Connection) declareQueues() error {
	for _, name := range []string{AttemptQueueName, SessionQueueName} {
		_, err := c.channel.QueueDeclare(
			name,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			amqp.Table{
				"x-message-ttl": int32(7 * 24 * time.Hour / time.Millisecond),
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}
	return nil
}

// handleReconnect waits for the connection to drop and redials with
// exponential backoff, giving up after 10 attempts or once Close is called
func (c *Connection) handleReconnect(notifyClose <-chan *amqp.Error) {
	err, ok := <-notifyClose
	if !ok || err == nil || c.isClosed() {
		return
	}

	slog.Warn("RabbitMQ connection closed, attempting to reconnect",
		"error", err,
		"reconnects", c.reconnects.Load(),
	)

	for i := 0; i < 10; i++ {
		c.reconnects.Add(1)

		select {
		case <-c.done:
			return
		case <-time.After(backoff(i)):
		}

		err := c.connect()
		if errors.Is(err, errConnectionClosed) {
			return
		}
		if err != nil {
			slog.Error("reconnection failed", "error", err, "attempt", i+1)
			continue
		}
		slog.Info("reconnected to RabbitMQ", "attempts", i+1)
		return
	}

	slog.Error("failed to reconnect to RabbitMQ after 10 attempts")
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<attempt) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// IsConnected checks if the connection is active
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close closes the channel and connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.done)
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PublishJSON publishes a persistent JSON message to a queue
func (c *Connection) PublishJSON(ctx context.Context, queue string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	return ch.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// AMQPPublisher publishes events to RabbitMQ
type AMQPPublisher struct {
	conn *Connection
}

// NewAMQPPublisher connects to the broker at url
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{conn: conn}, nil
}

// PublishAttempt publishes a checked answer
func (p *AMQPPublisher) PublishAttempt(ctx context.Context, e *AttemptEvent) error {
	stamp(&e.ID, &e.CreatedAt)
	if err := p.publish(ctx, AttemptQueueName, e); err != nil {
		return fmt.Errorf("failed to publish attempt: %w", err)
	}
	slog.Debug("published attempt", "id", e.ID, "exercise_id", e.ExerciseID, "correct", e.IsCorrect)
	return nil
}

// PublishSession publishes a finished session
func (p *AMQPPublisher) PublishSession(ctx context.Context, e *SessionEvent) error {
	stamp(&e.ID, &e.CreatedAt)
	if err := p.publish(ctx, SessionQueueName, e); err != nil {
		return fmt.Errorf("failed to publish session: %w", err)
	}
	slog.Info("published session", "id", e.ID, "session_id", e.SessionID, "category", e.Category)
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, queue string, e any) error {
	if err := p.conn.PublishJSON(ctx, queue, e); err != nil {
		metrics.RecordEvent(queue, "error")
		return err
	}
	metrics.RecordEvent(queue, "ok")
	return nil
}

// Close closes the broker connection
func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

// sanitizeURL drops credentials from a broker URL for logging
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}

var _ Publisher = (*AMQPPublisher)(nil)

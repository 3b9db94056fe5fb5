package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultOutboxSize  = 256
	defaultDialTimeout = 3 * time.Second
	sendTimeout        = 5 * time.Second
)

var (
	ErrOutboxFull      = errors.New("event outbox is full")
	ErrPublisherClosed = errors.New("event publisher is closed")
)

// AMQPPublisher publishes events to a durable RabbitMQ queue through the
// default exchange. Publish only enqueues; a single background goroutine owns
// the broker connection, so a slow or unreachable broker never blocks the
// caller. The connection is opened lazily and reopened after the broker
// drops it. Events that cannot be delivered are logged and dropped.
type AMQPPublisher struct {
	url         string
	queue       string
	logger      *slog.Logger
	dialTimeout time.Duration

	outbox    chan amqp.Publishing
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string, logger *slog.Logger) *AMQPPublisher {
	p := newAMQPPublisher(url, queue, logger, defaultOutboxSize, defaultDialTimeout)
	p.wg.Add(1)
	go p.run()
	return p
}

func newAMQPPublisher(url, queue string, logger *slog.Logger, size int, dialTimeout time.Duration) *AMQPPublisher {
	return &AMQPPublisher{
		url:         url,
		queue:       queue,
		logger:      logger,
		dialTimeout: dialTimeout,
		outbox:      make(chan amqp.Publishing, size),
		done:        make(chan struct{}),
	}
}

// Publish queues the event for delivery. It never waits on the broker.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         event.Type,
		Body:         body,
	}

	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.outbox <- msg:
		return nil
	default:
		return ErrOutboxFull
	}
}

func (p *AMQPPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.outbox:
			p.send(msg)
		case <-p.done:
			p.drain()
			p.closeConn()
			return
		}
	}
}

// drain flushes whatever is already queued before shutdown. It gives up on
// the first failure so an unreachable broker cannot stall shutdown.
func (p *AMQPPublisher) drain() {
	for {
		select {
		case msg := <-p.outbox:
			if !p.send(msg) {
				if n := len(p.outbox); n > 0 {
					p.logger.Warn("discarding queued events on shutdown", slog.Int("count", n))
				}
				return
			}
		default:
			return
		}
	}
}

func (p *AMQPPublisher) send(msg amqp.Publishing) bool {
	ch, err := p.channel()
	if err != nil {
		p.logger.Warn("dropping event",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()),
		)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.closeConn()
		p.logger.Warn("dropping event",
			slog.String("type", msg.Type),
			slog.String("error", fmt.Sprintf("rabbitmq publish failed: %v", err)),
		)
		return false
	}
	return true
}

// channel returns an open channel, dialing if needed.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.closeConn()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open failed: %w", err)
	}

	if _, err := ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare failed: %w", err)
	}

	p.conn, p.ch = conn, ch
	p.logger.Info("rabbitmq publisher connected", slog.String("queue", p.queue))
	return ch, nil
}

func (p *AMQPPublisher) closeConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close stops accepting events, flushes the outbox and closes the broker
// connection.
func (p *AMQPPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
	return nil
}

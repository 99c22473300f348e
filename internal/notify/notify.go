// Package notify announces finished search reports to other services.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/flatscout/flatscout/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// EventType is the event-type header of report messages.
	EventType = "ReportFinishedEvent"

	// EventVersion is the event-version header of report messages.
	EventVersion = "1.0.0"

	publishTimeout = 10 * time.Second
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher is closed")

// ReportEvent is the message body published for a finished report.
type ReportEvent struct {
	ReportID         string             `json:"report_id"`
	Status           model.ReportStatus `json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	CompletedAt      time.Time          `json:"completed_at"`
	SearchMode       model.SearchMode   `json:"search_mode"`
	MatchMode        model.MatchMode    `json:"match_mode"`
	WebsitesChecked  []string           `json:"websites_checked"`
	AddressesChecked int                `json:"addresses_checked"`
	MatchesFound     int                `json:"matches_found"`
	ExactMatches     int                `json:"exact_matches"`
	ExtendedMatches  int                `json:"extended_matches"`
	Matches          []model.Match      `json:"matches"`
}

// NewReportEvent builds the event for r.
func NewReportEvent(r model.Report) ReportEvent {
	exact, extended := r.CountByType()
	return ReportEvent{
		ReportID:         r.ID,
		Status:           r.Status,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		SearchMode:       r.SearchMode,
		MatchMode:        r.MatchMode,
		WebsitesChecked:  r.WebsitesChecked,
		AddressesChecked: r.AddressesChecked,
		MatchesFound:     r.MatchesFound,
		ExactMatches:     exact,
		ExtendedMatches:  extended,
		Matches:          r.Matches,
	}
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes report events to a RabbitMQ fanout exchange.
// It is safe for concurrent use.
type AMQPPublisher struct {
	exchange string
	logger   *slog.Logger

	mu   sync.Mutex
	ch   channel
	conn io.Closer
}

// Option configures an AMQPPublisher.
type Option func(*AMQPPublisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *AMQPPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// DialAMQP connects to the broker at url and declares a durable fanout
// exchange.
func DialAMQP(url, exchange string, opts ...Option) (*AMQPPublisher, error) {
	if exchange == "" {
		return nil, fmt.Errorf("amqp exchange name is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}
	return newAMQPPublisher(ch, conn, exchange, opts...), nil
}

func newAMQPPublisher(ch channel, conn io.Closer, exchange string, opts ...Option) *AMQPPublisher {
	p := &AMQPPublisher{
		exchange: exchange,
		logger:   slog.Default(),
		ch:       ch,
		conn:     conn,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends the event of r as a persistent JSON message. The routing
// key is "report.<status>".
func (p *AMQPPublisher) Publish(ctx context.Context, r model.Report) error {
	body, err := json.Marshal(NewReportEvent(r))
	if err != nil {
		return fmt.Errorf("failed to marshal report event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    r.ID,
		Timestamp:    r.CompletedAt,
		Headers: amqp.Table{
			"event-type":    EventType,
			"event-version": EventVersion,
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return ErrClosed
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	routingKey := "report." + r.Status.String()
	if err := p.ch.PublishWithContext(publishCtx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish report %s: %w", r.ID, err)
	}
	p.logger.Debug("published report event", "report_id", r.ID, "exchange", p.exchange, "routing_key", routingKey)
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return err
}

// Nop discards every report.
type Nop struct{}

// Publish implements session.Publisher.
func (Nop) Publish(context.Context, model.Report) error { return nil }

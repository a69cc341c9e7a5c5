// Package events forwards escalation tickets to the helpdesk.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/resilience"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/events")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per ticket, keyed by ticket id.
type KafkaPublisher struct {
	writer messageWriter
	cfg    resilience.Config
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, cfg resilience.Config, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// PublishTicket serializes t and writes it, retrying per cfg.
func (p *KafkaPublisher) PublishTicket(ctx context.Context, t domain.Ticket) error {
	ctx, span := tracer.Start(ctx, "KafkaPublisher.PublishTicket")
	defer span.End()
	span.SetAttributes(
		attribute.String("ticket.id", t.TicketID),
		attribute.String("ticket.assigned_to", string(t.AssignedTo)),
	)

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal ticket: %w", err)
	}
	msg := kafka.Message{Key: []byte(t.TicketID), Value: data}

	err = resilience.RetryWithBackoff(ctx, p.cfg, func() error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		span.RecordError(err)
		return &domain.ErrExternalService{Service: "kafka", Err: err}
	}

	p.logger.Info("ticket published",
		zap.String("ticket_id", t.TicketID),
		zap.String("assigned_to", string(t.AssignedTo)),
		zap.Int("priority", t.Priority),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher only logs tickets. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher returns a publisher that writes tickets to logger.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// PublishTicket logs t.
func (p *LogPublisher) PublishTicket(_ context.Context, t domain.Ticket) error {
	p.logger.Info("ticket created",
		zap.String("ticket_id", t.TicketID),
		zap.String("customer_id", t.CustomerID),
		zap.String("assigned_to", string(t.AssignedTo)),
		zap.Int("priority", t.Priority),
		zap.String("reason", t.Reason),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }

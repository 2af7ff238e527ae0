package notification

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

// Message is the JSON body published for each new notification.
type Message struct {
	ID         string `json:"id"`
	ClinicID   string `json:"clinic_id"`
	EntityID   string `json:"entity_id"`
	Type       string `json:"type"`
	NotifyDate string `json:"notify_date"`
	Title      string `json:"title"`
	Message    string `json:"message"`
}

func NewMessage(n clinic.Notification) Message {
	return Message{
		ID:         n.ID.String(),
		ClinicID:   n.ClinicID.String(),
		EntityID:   n.EntityID.String(),
		Type:       n.Type,
		NotifyDate: n.NotifyDate.Format("2006-01-02"),
		Title:      n.Title,
		Message:    n.Message,
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, clinic.Notification) error { return nil }

type AMQPPublisher struct {
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

// NewAMQPPublisher opens a channel on conn and declares queue as durable.
func NewAMQPPublisher(conn *amqp.Connection, queue string, log *zap.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &AMQPPublisher{ch: ch, queue: queue, log: log}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, n clinic.Notification) error {
	body, err := json.Marshal(NewMessage(n))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID.String(),
		Type:         n.Type,
		Headers: amqp.Table{
			"clinic_id": n.ClinicID.String(),
		},
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}

	p.log.Debug("notification published",
		zap.String("queue", p.queue),
		zap.String("type", n.Type),
		zap.String("notification_id", n.ID.String()),
	)
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

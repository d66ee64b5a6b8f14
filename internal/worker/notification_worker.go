package worker

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/notify"
)

// DeliverySource is implemented by notify.AMQPConsumer.
type DeliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// NotificationWorker drains the WhatsApp queue and hands each message to the
// sender. A failed send is requeued once; a second failure drops it.
type NotificationWorker struct {
	source   DeliverySource
	sender   notify.Sender
	recorder notify.Recorder
	timeout  time.Duration
}

// NewNotificationWorker constructs a NotificationWorker. recorder may be nil.
func NewNotificationWorker(source DeliverySource, sender notify.Sender, recorder notify.Recorder, timeout time.Duration) *NotificationWorker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NotificationWorker{
		source:   source,
		sender:   sender,
		recorder: recorder,
		timeout:  timeout,
	}
}

// Start consumes until ctx is canceled or the channel closes.
func (w *NotificationWorker) Start(ctx context.Context) {
	deliveries, err := w.source.Deliveries(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start notification consumer")
		return
	}
	log.Info().Msg("Starting notification worker")

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				log.Warn().Msg("Notification delivery channel closed")
				return
			}
			w.handle(ctx, d)
		case <-ctx.Done():
			log.Info().Msg("Notification worker stopped")
			return
		}
	}
}

func (w *NotificationWorker) handle(ctx context.Context, d amqp.Delivery) {
	var msg notify.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		log.Error().Err(err).Str("message_id", d.MessageId).Msg("Dropping malformed notification")
		_ = d.Nack(false, false)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.sender.Send(sendCtx, msg)
	cancel()

	if err == nil {
		w.observe(msg.Key, "sent")
		if ackErr := d.Ack(false); ackErr != nil {
			log.Warn().Err(ackErr).Str("message_id", msg.ID).Msg("Failed to ack notification")
		}
		return
	}

	requeue := !d.Redelivered
	log.Warn().
		Err(err).
		Str("message_id", msg.ID).
		Str("template", string(msg.Key)).
		Bool("requeue", requeue).
		Msg("Notification delivery failed")
	if requeue {
		w.observe(msg.Key, "retried")
	} else {
		w.observe(msg.Key, "failed")
	}
	_ = d.Nack(false, requeue)
}

func (w *NotificationWorker) observe(key notify.TemplateKey, status string) {
	if w.recorder != nil {
		w.recorder.ObserveNotification(string(key), status)
	}
}

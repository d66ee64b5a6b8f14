// Package notify renders templated messages and delivers them to users
// through a best-effort, bounded, asynchronous pipeline. Callers never see
// delivery errors; failures are logged and counted.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

// Message is a rendered notification ready for a transport.
type Message struct {
	ID       string          `json:"id"`
	Phone    string          `json:"phone"`
	Key      TemplateKey     `json:"key"`
	Lang     models.Language `json:"lang"`
	Text     string          `json:"text"`
	QueuedAt time.Time       `json:"queuedAt"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier is what domain services depend on. Notify never blocks on
// delivery and never reports failure.
type Notifier interface {
	Notify(ctx context.Context, phone string, lang models.Language, key TemplateKey, args ...any)
}

// Recorder receives delivery outcomes, e.g. for metrics.
type Recorder interface {
	ObserveNotification(key, status string)
}

// Dispatcher queues messages and hands them to a Sender from a fixed pool of
// goroutines. A full queue drops the message.
type Dispatcher struct {
	sender      Sender
	recorder    Recorder
	queue       chan Message
	workers     int
	sendTimeout time.Duration
	now         func() time.Time

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. recorder may be nil.
func NewDispatcher(sender Sender, workers, queueSize int, recorder Recorder) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Dispatcher{
		sender:      sender,
		recorder:    recorder,
		queue:       make(chan Message, queueSize),
		workers:     workers,
		sendTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

// Notify renders and enqueues a message.
func (d *Dispatcher) Notify(_ context.Context, phone string, lang models.Language, key TemplateKey, args ...any) {
	if phone == "" {
		log.Debug().Str("template", string(key)).Msg("Skipping notification without phone")
		d.observe(key, "skipped")
		return
	}
	text, err := Render(key, lang, args...)
	if err != nil {
		log.Error().Err(err).Str("template", string(key)).Msg("Failed to render notification")
		d.observe(key, "render_error")
		return
	}
	msg := Message{
		ID:       uuid.New().String(),
		Phone:    phone,
		Key:      key,
		Lang:     lang.Normalize(),
		Text:     text,
		QueuedAt: d.now(),
	}
	select {
	case d.queue <- msg:
		d.observe(key, "queued")
	default:
		log.Warn().Str("template", string(key)).Str("phone", phone).Msg("Notification queue full, dropping message")
		d.observe(key, "dropped")
	}
}

// Start runs the delivery goroutines until ctx is canceled.
// Messages still queued at shutdown are discarded.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		log.Info().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("Starting notification dispatcher")
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.loop(ctx)
		}
		d.wg.Wait()
		if n := len(d.queue); n > 0 {
			log.Warn().Int("pending", n).Msg("Notification dispatcher stopped with pending messages")
		}
		log.Info().Msg("Notification dispatcher stopped")
	})
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.sender.Send(sendCtx, msg); err != nil {
		log.Error().
			Err(err).
			Str("message_id", msg.ID).
			Str("template", string(msg.Key)).
			Str("phone", msg.Phone).
			Msg("Failed to deliver notification")
		d.observe(msg.Key, "failed")
		return
	}
	d.observe(msg.Key, "sent")
}

func (d *Dispatcher) observe(key TemplateKey, status string) {
	if d.recorder != nil {
		d.recorder.ObserveNotification(string(key), status)
	}
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, models.Language, TemplateKey, ...any) {}

// Package mailer delivers notification emails out of band. Callers hand a
// message to a Dispatcher, which only enqueues it; a Pool of workers drains
// the queue and talks to the mail transport.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/logging"
	"github.com/google/uuid"
)

// Message is one queued email.
type Message struct {
	ID         string    `json:"id"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a FIFO of messages shared by the dispatcher and the pool.
// Dequeue blocks until a message is available, ctx ends or the queue is
// closed (common.ErrQueueClosed).
type Queue interface {
	Enqueue(ctx context.Context, m *Message) error
	Dequeue(ctx context.Context) (*Message, error)
	Close() error
}

// Dispatcher turns send requests into queued messages.
type Dispatcher struct {
	queue  Queue
	logger logging.Logger
	now    func() time.Time
}

func NewDispatcher(q Queue, logger logging.Logger) *Dispatcher {
	return &Dispatcher{queue: q, logger: logger.With("module", "mailer"), now: time.Now}
}

// Send enqueues an email and returns without waiting for delivery.
func (d *Dispatcher) Send(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}

	m := &Message{
		ID:         uuid.NewString(),
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
		EnqueuedAt: d.now().UTC(),
	}
	if err := d.queue.Enqueue(ctx, m); err != nil {
		return fmt.Errorf("enqueue message: %w", err)
	}

	d.logger.Debug(ctx, "message enqueued", "id", m.ID, "subject", subject)
	return nil
}

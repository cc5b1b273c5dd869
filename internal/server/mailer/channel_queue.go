package mailer

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/pricewatch/internal/common"
)

// ChannelQueue is an in-process queue backed by a buffered channel.
// Messages still buffered when the process exits are lost.
type ChannelQueue struct {
	ch   chan *Message
	done chan struct{}
	once sync.Once
}

func NewChannelQueue(size int) *ChannelQueue {
	if size < 1 {
		size = 1
	}
	return &ChannelQueue{ch: make(chan *Message, size), done: make(chan struct{})}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, m *Message) error {
	select {
	case <-q.done:
		return common.ErrQueueClosed
	default:
	}

	select {
	case q.ch <- m:
		return nil
	case <-q.done:
		return common.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) (*Message, error) {
	select {
	case m := <-q.ch:
		return m, nil
	case <-q.done:
		return nil, common.ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of buffered messages.
func (q *ChannelQueue) Len() int {
	return len(q.ch)
}

func (q *ChannelQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

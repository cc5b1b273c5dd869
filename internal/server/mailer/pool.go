package mailer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/logging"
)

// Delivery outcomes reported to the observer.
const (
	StatusSent    = "sent"
	StatusRetry   = "retry"
	StatusDropped = "dropped"
)

// Sender hands one message to the mail transport.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	NumWorkers     int
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	SendTimeout    time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers:     2,
		MaxRetries:     3,
		BaseRetryDelay: time.Second,
		MaxRetryDelay:  30 * time.Second,
		SendTimeout:    30 * time.Second,
	}
}

// Pool drains a Queue with a fixed number of workers.
type Pool struct {
	config  PoolConfig
	queue   Queue
	sender  Sender
	logger  logging.Logger
	observe func(status string)

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

func NewPool(cfg PoolConfig, q Queue, s Sender, logger logging.Logger) *Pool {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	return &Pool{
		config:  cfg,
		queue:   q,
		sender:  s,
		logger:  logger.With("module", "mailpool"),
		observe: func(string) {},
	}
}

// OnDelivery registers fn to be called with every delivery outcome.
// It must be called before Start.
func (p *Pool) OnDelivery(fn func(status string)) {
	p.observe = fn
}

func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("pool is already running")
	}
	p.running = true

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.config.NumWorkers; i++ {
		id := fmt.Sprintf("mail-worker-%d", i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(workerCtx, id)
		}()
	}

	p.logger.Info(ctx, "mail pool started", "workers", p.config.NumWorkers)
	return nil
}

// Stop cancels the workers and waits for them, or for ctx to end.
// A message being delivered when Stop is called is abandoned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info(ctx, "mail pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run(ctx context.Context, id string) {
	log := p.logger.With("worker", id)
	for {
		m, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, common.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			log.Error(ctx, "dequeue failed", "error", err)
			if !sleep(ctx, p.config.BaseRetryDelay) {
				return
			}
			continue
		}
		p.deliver(ctx, log, m)
	}
}

// deliver tries m once plus up to MaxRetries more times with exponential
// backoff, then drops it.
func (p *Pool) deliver(ctx context.Context, log logging.Logger, m *Message) {
	for attempt := 1; ; attempt++ {
		err := p.send(ctx, m)
		if err == nil {
			p.observe(StatusSent)
			log.Info(ctx, "message delivered", "id", m.ID, "attempt", attempt)
			return
		}

		if attempt > p.config.MaxRetries {
			p.observe(StatusDropped)
			log.Error(ctx, "message dropped", "id", m.ID, "attempts", attempt, "error", err)
			return
		}

		delay := p.retryDelay(attempt)
		p.observe(StatusRetry)
		log.Warn(ctx, "delivery failed, retrying", "id", m.ID, "attempt", attempt, "delay", delay, "error", err)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (p *Pool) send(ctx context.Context, m *Message) error {
	if p.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.SendTimeout)
		defer cancel()
	}
	return p.sender.Send(ctx, m)
}

// retryDelay is BaseRetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func (p *Pool) retryDelay(attempt int) time.Duration {
	delay := float64(p.config.BaseRetryDelay) * math.Pow(2, float64(attempt-1))
	if p.config.MaxRetryDelay > 0 && time.Duration(delay) > p.config.MaxRetryDelay {
		return p.config.MaxRetryDelay
	}
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

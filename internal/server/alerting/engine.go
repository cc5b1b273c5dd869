// Package alerting evaluates open price subscriptions against live market
// data and turns the ones that fire into notifications.
package alerting

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/logging"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the engine reads subscriptions and owners from.
type Store interface {
	ListOpen(ctx context.Context) ([]*models.Subscription, error)
	FindUser(ctx context.Context, userID int64) (*models.User, error)
	TransitionToNotification(ctx context.Context, id int64, firedAt time.Time) error
}

// Oracle quotes the current price of a target.
type Oracle interface {
	Price(ctx context.Context, t models.Target) (float64, error)
}

// Dispatcher enqueues an email. Delivery happens elsewhere.
type Dispatcher interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// Recorder receives per-subscription outcomes and pass timings.
type Recorder interface {
	SubscriptionEvaluated(result string)
	PassFinished(d time.Duration)
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeFired
	outcomeSkipped
	outcomeFailed
	outcomeInert
	numOutcomes
)

func (o outcome) String() string {
	return [...]string{"unchanged", "fired", "skipped", "failed", "inert"}[o]
}

// Report summarises one evaluation pass.
type Report struct {
	Evaluated int
	Unchanged int
	Fired     int
	Skipped   int // owner no longer exists
	Failed    int // price, unknown kind, enqueue or transition failure
	Inert     int // operator outside the closed set
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds how many subscriptions are evaluated at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the clock used for fired_at stamps and pass timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder reports evaluation outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Engine evaluates open subscriptions against live prices and fires alerts.
type Engine struct {
	store       Store
	oracle      Oracle
	mailer      Dispatcher
	logger      logging.Logger
	recorder    Recorder
	concurrency int
	now         func() time.Time
}

// NewEngine returns an engine evaluating one subscription at a time unless
// WithConcurrency says otherwise.
func NewEngine(store Store, oracle Oracle, mailer Dispatcher, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		oracle:      oracle,
		mailer:      mailer,
		logger:      logger.With("module", "alerting"),
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAll runs one pass over every open subscription. Failures are
// isolated per subscription; the only error returned is failing to read
// the open set.
func (e *Engine) EvaluateAll(ctx context.Context) (Report, error) {
	start := e.now()

	subs, err := e.store.ListOpen(ctx)
	if err != nil {
		e.logger.Error(ctx, "list open subscriptions failed", "error", err)
		return Report{}, fmt.Errorf("list open subscriptions: %w", err)
	}

	var counts [numOutcomes]atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			o := e.evaluate(ctx, sub)
			counts[o].Add(1)
			if e.recorder != nil {
				e.recorder.SubscriptionEvaluated(o.String())
			}
			return nil
		})
	}
	_ = g.Wait()

	r := Report{
		Evaluated: len(subs),
		Unchanged: int(counts[outcomeUnchanged].Load()),
		Fired:     int(counts[outcomeFired].Load()),
		Skipped:   int(counts[outcomeSkipped].Load()),
		Failed:    int(counts[outcomeFailed].Load()),
		Inert:     int(counts[outcomeInert].Load()),
	}

	elapsed := e.now().Sub(start)
	if e.recorder != nil {
		e.recorder.PassFinished(elapsed)
	}
	e.logger.Info(ctx, "evaluation pass finished",
		"evaluated", r.Evaluated, "fired", r.Fired, "unchanged", r.Unchanged,
		"skipped", r.Skipped, "failed", r.Failed, "inert", r.Inert, "elapsed", elapsed)

	return r, nil
}

// evaluate runs fetch, compare, notify and transition for one subscription.
// It shares nothing with other evaluations.
func (e *Engine) evaluate(ctx context.Context, sub *models.Subscription) outcome {
	log := e.logger.With("subscription", sub.ID, "kind", string(sub.CheckType), "symbol", sub.Symbol)

	user, err := e.store.FindUser(ctx, sub.UserID)
	if err != nil {
		log.Error(ctx, "owner lookup failed", "user", sub.UserID, "error", err)
		return outcomeFailed
	}
	if user == nil {
		log.Debug(ctx, "owner no longer exists", "user", sub.UserID)
		return outcomeSkipped
	}

	if !sub.Operator.Valid() {
		log.Debug(ctx, "operator outside closed set, never fires", "operator", string(sub.Operator))
		return outcomeInert
	}

	target, err := sub.Target()
	if err != nil {
		log.Warn(ctx, "cannot build price target", "error", err)
		return outcomeFailed
	}

	price, err := e.oracle.Price(ctx, target)
	if err != nil {
		log.Warn(ctx, "price unavailable", "error", err)
		return outcomeFailed
	}

	if !CheckOperator(sub.Operator, sub.Threshold, price) {
		return outcomeUnchanged
	}

	subject, body := BuildMessage(sub, price)
	if err := e.mailer.Send(ctx, []string{user.Email}, subject, body); err != nil {
		log.Error(ctx, "enqueue notification failed, subscription stays open", "error", err)
		return outcomeFailed
	}

	if err := e.store.TransitionToNotification(ctx, sub.ID, e.now().UTC()); err != nil {
		log.Error(ctx, "transition failed, subscription stays open", "error", err)
		return outcomeFailed
	}

	log.Info(ctx, "subscription fired", "user", sub.UserID, "price", price, "threshold", sub.Threshold)
	return outcomeFired
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/common"
	"github.com/dmitrijs2005/pricewatch/internal/dbx"
	"github.com/dmitrijs2005/pricewatch/internal/server/models"
	"github.com/dmitrijs2005/pricewatch/internal/server/repositories/repomanager"
)

// SubscriptionStore is the persisted state behind alerting: open
// subscriptions, fired notifications and their owners. Every call takes
// its own handle from the pool; there is no shared session.
type SubscriptionStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewSubscriptionStore(db *sql.DB, m repomanager.RepositoryManager) *SubscriptionStore {
	return &SubscriptionStore{db: db, repomanager: m}
}

func (s *SubscriptionStore) ListOpen(ctx context.Context) ([]*models.Subscription, error) {
	return s.repomanager.Subscriptions(s.db).ListOpen(ctx)
}

// FindUser returns nil, nil when the user does not exist.
func (s *SubscriptionStore) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// TransitionToNotification moves subscription id into the notifications
// table in one transaction. The delete goes first so a subscription that
// is already gone (fired by someone else, or deleted by its owner) aborts
// the transition instead of producing a second notification.
func (s *SubscriptionStore) TransitionToNotification(ctx context.Context, id int64, firedAt time.Time) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sub, err := s.repomanager.Subscriptions(tx).DeleteReturning(ctx, id)
		if err != nil {
			return fmt.Errorf("delete subscription: %w", err)
		}

		if _, err := s.repomanager.Notifications(tx).Create(ctx, models.NotificationFrom(sub, firedAt)); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: subscription %d: %w", common.ErrTransitionFailed, id, err)
	}
	return nil
}

// CreateSubscription validates and stores a new watch for its owner.
func (s *SubscriptionStore) CreateSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	sub.Symbol = strings.TrimSpace(sub.Symbol)
	sub.Currency = strings.ToLower(strings.TrimSpace(sub.Currency))

	if _, err := sub.Target(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInvalidInput, err)
	}
	if !sub.Operator.Valid() {
		return nil, fmt.Errorf("%w: operator %q", common.ErrorInvalidInput, sub.Operator)
	}
	if sub.Symbol == "" || sub.Threshold <= 0 {
		return nil, fmt.Errorf("%w: symbol and positive threshold are required", common.ErrorInvalidInput)
	}
	if sub.Currency == "" {
		sub.Currency = "usd"
	}

	return s.repomanager.Subscriptions(s.db).Create(ctx, sub)
}

func (s *SubscriptionStore) ListSubscriptions(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	return s.repomanager.Subscriptions(s.db).ListByUser(ctx, userID)
}

func (s *SubscriptionStore) DeleteSubscription(ctx context.Context, userID, id int64) error {
	return s.repomanager.Subscriptions(s.db).DeleteForUser(ctx, userID, id)
}

func (s *SubscriptionStore) ListNotifications(ctx context.Context, userID int64) ([]*models.Notification, error) {
	return s.repomanager.Notifications(s.db).ListByUser(ctx, userID)
}

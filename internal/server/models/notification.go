package models

import "time"

// Notification is the immutable record of a subscription that fired.
type Notification struct {
	ID        int64
	UserID    int64
	CheckType CheckKind
	Symbol    string
	Operator  Operator
	Threshold float64
	Currency  string
	FiredAt   time.Time
}

// NotificationFrom copies the fields of s into a notification fired at t.
func NotificationFrom(s *Subscription, t time.Time) *Notification {
	return &Notification{
		UserID:    s.UserID,
		CheckType: s.CheckType,
		Symbol:    s.Symbol,
		Operator:  s.Operator,
		Threshold: s.Threshold,
		Currency:  s.Currency,
		FiredAt:   t,
	}
}

package models

import "time"

// Verification is a pending email confirmation code.
type Verification struct {
	ID        int64
	Email     string
	Code      string
	CreatedAt time.Time
}

// Expired reports whether the code is older than ttl at now.
func (v *Verification) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(v.CreatedAt) > ttl
}

// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a registered account. PasswordHash holds a bcrypt digest.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Country      string
	Verified     bool
	Role         string
	AvatarURL    string
	Premium      bool
	CreatedAt    time.Time
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

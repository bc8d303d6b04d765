package domain

import "time"

// User is an account that can submit ratings. Users are immutable once created.
type User struct {
	ID        string
	Username  string
	Email     *string
	IsAdmin   bool
	CreatedAt time.Time
}

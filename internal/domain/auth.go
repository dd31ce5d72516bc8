package domain

import "time"

// Session is a server-side login record referenced by the session token.
type Session struct {
	ID        string
	UserID    string
	Role      Role
	ExpiresAt time.Time
}

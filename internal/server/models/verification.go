package models

import "time"

// Verification is the pending email verification code of an unverified user.
// There is at most one per user.
type Verification struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the code can no longer be used at now.
func (v *Verification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

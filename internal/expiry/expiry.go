// Package expiry classifies artifacts by their expiration date. The
// classification is derived on every read and never persisted, so it is
// always consistent with the current clock without a write-time job.
package expiry

import "time"

// Classification is the derived expiration state of an artifact.
type Classification string

const (
	// Active: no expiration date, or the date is beyond the warning window.
	Active Classification = "active"
	// ExpiringSoon: the date falls inside the warning window.
	ExpiringSoon Classification = "expiring_soon"
	// Expired: the date is in the past. Expired is a fact about the clock,
	// not the stored status; an approved artifact can be expired.
	Expired Classification = "expired"
)

// Classify is a pure function of (expiresAt, now, window). A nil expiresAt
// means the artifact never expires.
func Classify(expiresAt *time.Time, now time.Time, window time.Duration) Classification {
	if expiresAt == nil {
		return Active
	}
	if !expiresAt.After(now) {
		return Expired
	}
	if expiresAt.Sub(now) <= window {
		return ExpiringSoon
	}
	return Active
}

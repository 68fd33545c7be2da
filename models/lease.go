package models

import (
	"time"
)

// Lease gives one job holder exclusive use of a key until ExpiresAt.
// Jobs that must not run concurrently for the same resource take a
// lease on the resource id before they start. A job that crashes
// without releasing its lease blocks others only until expiry.
type Lease struct {
	Key       string    `json:"key"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired returns true if the lease is no longer valid at time now.
func (lease *Lease) Expired(now time.Time) bool {
	return !now.Before(lease.ExpiresAt)
}

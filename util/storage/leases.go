package storage

import (
	"fmt"
	"github.com/APTrust/fixity/models"
	"github.com/boltdb/bolt"
	"time"
)

// Leases hands out expiring, exclusive claims on keys. Jobs that must
// not run concurrently for the same resource acquire a lease on the
// resource id first.
type Leases struct {
	boltDB *BoltDB
	now    func() time.Time
}

func NewLeases(boltDB *BoltDB) *Leases {
	return &Leases{boltDB: boltDB, now: time.Now}
}

// Acquire gives holder the lease on key for ttl and returns true,
// unless someone else holds an unexpired lease on it. A holder that
// acquires a key it already holds extends the lease.
func (leases *Leases) Acquire(key, holder string, ttl time.Duration) (bool, error) {
	acquired := false
	err := leases.boltDB.Update(func(tx *bolt.Tx) error {
		now := leases.now()
		existing := &models.Lease{}
		found, err := GetValue(tx, LeaseBucket, key, existing)
		if err != nil {
			return err
		}
		if found && existing.Holder != holder && !existing.Expired(now) {
			return nil
		}
		lease := &models.Lease{Key: key, Holder: holder, ExpiresAt: now.Add(ttl)}
		acquired = true
		return PutValue(tx, LeaseBucket, key, lease)
	})
	if err != nil {
		return false, fmt.Errorf("Error acquiring lease on %s: %v", key, err)
	}
	return acquired, nil
}

// Release drops the lease on key if holder holds it.
func (leases *Leases) Release(key, holder string) error {
	return leases.boltDB.Update(func(tx *bolt.Tx) error {
		existing := &models.Lease{}
		found, err := GetValue(tx, LeaseBucket, key, existing)
		if err != nil || !found || existing.Holder != holder {
			return err
		}
		return tx.Bucket([]byte(LeaseBucket)).Delete([]byte(key))
	})
}

// Get returns the lease on key, or nil.
func (leases *Leases) Get(key string) (*models.Lease, error) {
	lease := &models.Lease{}
	found, err := leases.boltDB.Get(LeaseBucket, key, lease)
	if err != nil || !found {
		return nil, err
	}
	return lease, nil
}

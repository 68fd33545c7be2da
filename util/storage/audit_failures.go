package storage

import (
	"github.com/APTrust/fixity/models"
)

// AuditFailures stores the PreservationCheckFailure rows written by
// preservation audits, keyed by audit id and resource id.
type AuditFailures struct {
	boltDB *BoltDB
}

func NewAuditFailures(boltDB *BoltDB) *AuditFailures {
	return &AuditFailures{boltDB: boltDB}
}

// Save writes a failure. Saving a second failure for the same audit
// and resource replaces the first, so a retried audit job leaves one
// row per resource.
func (store *AuditFailures) Save(failure *models.PreservationCheckFailure) error {
	return store.boltDB.Save(AuditFailureBucket, CompositeKey(failure.AuditId, failure.ResourceId), failure)
}

// ForAudit returns every failure recorded by the specified audit.
func (store *AuditFailures) ForAudit(auditId string) ([]*models.PreservationCheckFailure, error) {
	failures := make([]*models.PreservationCheckFailure, 0)
	err := store.boltDB.ForEachWithPrefix(AuditFailureBucket, CompositeKey(auditId, ""), func(k, v []byte) error {
		failure := &models.PreservationCheckFailure{}
		if err := Decode(v, failure); err != nil {
			return err
		}
		failures = append(failures, failure)
		return nil
	})
	return failures, err
}

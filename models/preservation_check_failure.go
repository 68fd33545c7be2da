package models

import (
	"github.com/satori/go.uuid"
	"time"
)

// PreservationCheckFailure is written by the preservation audit for
// each resource that should be preserved but is not, or whose
// preserved copy does not match. Reason describes the first failing
// condition. Nothing in the fixity engine reads these records; they
// are output for reports.
type PreservationCheckFailure struct {
	Id         string    `json:"id"`
	ResourceId string    `json:"resource_id"`
	AuditId    string    `json:"audit_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewPreservationCheckFailure(resourceId, auditId, reason string) *PreservationCheckFailure {
	return &PreservationCheckFailure{
		Id:         uuid.NewV4().String(),
		ResourceId: resourceId,
		AuditId:    auditId,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
}

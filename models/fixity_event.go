package models

import (
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/satori/go.uuid"
	"time"
)

/*
FixityEvent records the outcome of one verification run against a
TrackedEntity. Events are never deleted. The only change ever made
to a saved event is flipping Current to false when a newer event
for the same entity supersedes it.

Message carries diagnostic data. For failed checks it holds the
JSON form of the checksum we computed.
*/
type FixityEvent struct {
	// Id is a UUID assigned when the event is built.
	Id string `json:"id" validate:"required"`

	// Type is local_fixity or cloud_fixity.
	Type string `json:"type" validate:"required,oneof=local_fixity cloud_fixity"`

	// Status is SUCCESS, FAILURE or REPAIRING.
	Status string `json:"status" validate:"required,oneof=SUCCESS FAILURE REPAIRING"`

	ResourceId    string `json:"resource_id" validate:"required"`
	ChildProperty string `json:"child_property" validate:"required,oneof=metadata_node binary_nodes file_metadata"`
	ChildId       string `json:"child_id" validate:"required"`

	Message string `json:"message"`

	// Current is true for exactly one event per TrackedEntity:
	// the latest one.
	Current bool `json:"current"`

	CreatedAt time.Time `json:"created_at" validate:"required"`
}

// NewFixityEvent returns a new event for the specified entity. The
// event is not current until the ledger records it.
func NewFixityEvent(eventType, status string, entity TrackedEntity, message string) *FixityEvent {
	return &FixityEvent{
		Id:            uuid.NewV4().String(),
		Type:          eventType,
		Status:        status,
		ResourceId:    entity.ResourceId,
		ChildProperty: entity.ChildProperty,
		ChildId:       entity.ChildId,
		Message:       message,
		Current:       false,
		CreatedAt:     time.Now().UTC(),
	}
}

// TrackedEntity returns the identity this event was recorded against.
func (event *FixityEvent) TrackedEntity() TrackedEntity {
	return NewTrackedEntity(event.ResourceId, event.ChildProperty, event.ChildId)
}

// Validate returns an error wrapping constants.ErrInvalidEventData
// if any required field is missing or holds an unknown value.
func (event *FixityEvent) Validate() error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", constants.ErrInvalidEventData)
	}
	err := validate.Struct(event)
	if err != nil {
		return fmt.Errorf("%w: %v", constants.ErrInvalidEventData, err)
	}
	return nil
}

func (event *FixityEvent) Succeeded() bool {
	return event.Status == constants.StatusSuccess
}

func (event *FixityEvent) Failed() bool {
	return event.Status == constants.StatusFailure
}

func (event *FixityEvent) IsRepairing() bool {
	return event.Status == constants.StatusRepairing
}

package models

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/fixity/constants"
)

// CloudFixityRequest is the body of a message on the cloud fixity
// topic. Status is the outcome reported by the remote integrity
// check: SUCCESS or FAILURE.
type CloudFixityRequest struct {
	Status        string `json:"status" validate:"required,oneof=SUCCESS FAILURE"`
	ResourceId    string `json:"resource_id" validate:"required,resource_id"`
	ChildProperty string `json:"child_property" validate:"required,oneof=metadata_node binary_nodes"`
	ChildId       string `json:"child_id" validate:"required"`
}

func (request *CloudFixityRequest) TrackedEntity() TrackedEntity {
	return NewTrackedEntity(request.ResourceId, request.ChildProperty, request.ChildId)
}

func (request *CloudFixityRequest) Validate() error {
	return validateJob(request)
}

// LocalFixityRequest is the body of a message on the local fixity topic.
type LocalFixityRequest struct {
	FileSetId string `json:"file_set_id" validate:"required,resource_id"`
}

func (request *LocalFixityRequest) Validate() error {
	return validateJob(request)
}

// RepairRequest is the body of a message on the repair topics.
// Cloud repairs name the tracked entity that failed. Local repairs
// need only the FileSet id, carried in ResourceId. EventId is the
// REPAIRING event that triggered the repair, when there is one.
type RepairRequest struct {
	ResourceId    string `json:"resource_id" validate:"required,resource_id"`
	ChildProperty string `json:"child_property,omitempty" validate:"omitempty,oneof=metadata_node binary_nodes file_metadata"`
	ChildId       string `json:"child_id,omitempty"`
	EventId       string `json:"event_id,omitempty"`
}

func (request *RepairRequest) TrackedEntity() TrackedEntity {
	return NewTrackedEntity(request.ResourceId, request.ChildProperty, request.ChildId)
}

func (request *RepairRequest) Validate() error {
	return validateJob(request)
}

// AuditRequest is the body of a message on the audit topic. With a
// ResourceId, the job checks that one resource. Without one, it
// sweeps every resource in the metadata store.
type AuditRequest struct {
	ResourceId string `json:"resource_id,omitempty" validate:"omitempty,resource_id"`
	AuditId    string `json:"audit_id" validate:"required"`
}

func (request *AuditRequest) Validate() error {
	return validateJob(request)
}

// IsSweep returns true if the request is for a full audit.
func (request *AuditRequest) IsSweep() bool {
	return request.ResourceId == ""
}

func validateJob(request interface{}) error {
	if err := validate.Struct(request); err != nil {
		return fmt.Errorf("%w: %v", constants.ErrInvalidJobMessage, err)
	}
	return nil
}

type validatable interface {
	Validate() error
}

// ParseJobRequest decodes an NSQ message body into request, which
// must be a pointer to one of the request types above, and validates
// it.
func ParseJobRequest(body []byte, request validatable) error {
	err := json.Unmarshal(body, request)
	if err != nil {
		return fmt.Errorf("%w: %v", constants.ErrInvalidJobMessage, err)
	}
	return request.Validate()
}

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

/*
Resource is a record in the metadata store. Most resources are
descriptive records (works, collections). A FileSet is a Resource
whose Files list is not empty: each FileMetadata points at one file
in the local blob store.

LockToken is an opaque version marker. The metadata store changes
it every time the resource is saved, so a preserved copy whose
recorded token differs from the live one is known to be stale.
*/
type Resource struct {
	Id         string            `json:"id" validate:"resource_id"`
	Type       string            `json:"type"`
	LockToken  string            `json:"lock_token"`
	ParentId   string            `json:"parent_id,omitempty"`
	MemberIds  []string          `json:"member_ids,omitempty"`
	Files      []*FileMetadata   `json:"files,omitempty" validate:"dive,required"`
	Preserve   bool              `json:"preserve"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// FileMetadata describes one file belonging to a FileSet.
// FileIdentifier is the id of the file in the local blob store.
// Checksums holds every checksum ever recorded for the file,
// oldest first. It is empty until characterization has run.
type FileMetadata struct {
	Id             string           `json:"id" validate:"required"`
	Role           string           `json:"role"`
	Label          string           `json:"label"`
	FileIdentifier string           `json:"file_identifier" validate:"required"`
	Size           int64            `json:"size"`
	Checksums      []ChecksumRecord `json:"checksums,omitempty"`
}

// IsFileSet returns true if this resource owns binary files.
func (resource *Resource) IsFileSet() bool {
	return len(resource.Files) > 0
}

// FileById returns the file with the specified id, or nil.
func (resource *Resource) FileById(id string) *FileMetadata {
	for _, file := range resource.Files {
		if file.Id == id {
			return file
		}
	}
	return nil
}

// FileForRole returns the first file with the specified role, or nil.
func (resource *Resource) FileForRole(role string) *FileMetadata {
	for _, file := range resource.Files {
		if file.Role == role {
			return file
		}
	}
	return nil
}

// HasMember returns true if id is listed in MemberIds.
func (resource *Resource) HasMember(id string) bool {
	for _, memberId := range resource.MemberIds {
		if memberId == id {
			return true
		}
	}
	return false
}

// MetadataBytes returns the canonical JSON serialization of this
// resource. The preserved metadata node is a copy of these bytes,
// and the audit compares their checksums.
func (resource *Resource) MetadataBytes() ([]byte, error) {
	data, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("Cannot serialize resource %s: %v", resource.Id, err)
	}
	return data, nil
}

// Validate checks the fields the metadata store relies on: a usable
// id, and an id and file identifier on every file.
func (resource *Resource) Validate() error {
	if err := validate.Struct(resource); err != nil {
		return fmt.Errorf("Resource '%s' is not valid: %v", resource.Id, err)
	}
	return nil
}

// ResourceFromJson decodes a resource from its MetadataBytes form.
func ResourceFromJson(data []byte) (*Resource, error) {
	resource := &Resource{}
	err := json.Unmarshal(data, resource)
	if err != nil {
		return nil, err
	}
	return resource, nil
}

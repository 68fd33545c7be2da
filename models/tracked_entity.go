package models

import (
	"fmt"
	"strings"
)

// TrackedEntity identifies what is being verified: a resource's
// metadata node, one of its binary nodes, or one of the files on a
// FileSet. Fixity history is kept per TrackedEntity.
type TrackedEntity struct {
	ResourceId    string `json:"resource_id"`
	ChildProperty string `json:"child_property"`
	ChildId       string `json:"child_id"`
}

func NewTrackedEntity(resourceId, childProperty, childId string) TrackedEntity {
	return TrackedEntity{
		ResourceId:    resourceId,
		ChildProperty: childProperty,
		ChildId:       childId,
	}
}

// Key returns the composite key under which the ledger indexes
// this entity.
func (entity TrackedEntity) Key() string {
	return strings.Join([]string{entity.ResourceId, entity.ChildProperty, entity.ChildId}, "/")
}

func (entity TrackedEntity) String() string {
	return fmt.Sprintf("%s[%s=%s]", entity.ResourceId, entity.ChildProperty, entity.ChildId)
}

// IsComplete returns true if all three parts of the identity are set.
func (entity TrackedEntity) IsComplete() bool {
	return entity.ResourceId != "" && entity.ChildProperty != "" && entity.ChildId != ""
}

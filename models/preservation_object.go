package models

import (
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/satori/go.uuid"
	"time"
)

// FileNode is a preserved copy of a resource's metadata or of one
// of its binary files. FileIdentifier is the key of the copy in the
// durable store. LockToken is set only on metadata nodes and holds
// the resource's lock token at the time it was preserved.
// PreservedFileId is set only on binary nodes and holds the id of
// the FileMetadata it copies.
type FileNode struct {
	Id              string         `json:"id"`
	FileIdentifier  string         `json:"file_identifier"`
	Checksum        ChecksumRecord `json:"checksum"`
	LockToken       string         `json:"lock_token,omitempty"`
	PreservedFileId string         `json:"preserved_file_id,omitempty"`
	Size            int64          `json:"size"`
}

// PreservationObject records where and how a resource's metadata and
// binaries were copied into the durable store. It is written by the
// preserver. The fixity engine only reads it, except for pruning
// superseded copies.
type PreservationObject struct {
	Id                string      `json:"id"`
	PreservedObjectId string      `json:"preserved_object_id"`
	MetadataNode      *FileNode   `json:"metadata_node"`
	BinaryNodes       []*FileNode `json:"binary_nodes"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func NewPreservationObject(preservedObjectId string) *PreservationObject {
	now := time.Now().UTC()
	return &PreservationObject{
		Id:                uuid.NewV4().String(),
		PreservedObjectId: preservedObjectId,
		BinaryNodes:       make([]*FileNode, 0),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// BinaryNodeFor returns the binary node that preserves the file with
// the specified FileMetadata id, or nil.
func (obj *PreservationObject) BinaryNodeFor(fileId string) *FileNode {
	for _, node := range obj.BinaryNodes {
		if node.PreservedFileId == fileId {
			return node
		}
	}
	return nil
}

// BinaryNodeById returns the binary node with the specified id, or nil.
func (obj *PreservationObject) BinaryNodeById(nodeId string) *FileNode {
	for _, node := range obj.BinaryNodes {
		if node.Id == nodeId {
			return node
		}
	}
	return nil
}

// RecordedLockToken returns the lock token captured on the metadata
// node, or an empty string for copies made before lock tokens were
// tracked.
func (obj *PreservationObject) RecordedLockToken() string {
	if obj.MetadataNode == nil {
		return ""
	}
	return obj.MetadataNode.LockToken
}

// NodeFor returns the node a tracked entity refers to. For metadata
// nodes the child id may be the node id or the resource id. For
// binary nodes it may be the node id or the preserved file id.
func (obj *PreservationObject) NodeFor(childProperty, childId string) (*FileNode, error) {
	switch childProperty {
	case constants.ChildMetadataNode:
		if obj.MetadataNode == nil {
			return nil, fmt.Errorf("Preservation object %s has no metadata node", obj.Id)
		}
		return obj.MetadataNode, nil
	case constants.ChildBinaryNodes:
		node := obj.BinaryNodeById(childId)
		if node == nil {
			node = obj.BinaryNodeFor(childId)
		}
		if node == nil {
			return nil, fmt.Errorf("Preservation object %s has no binary node %s", obj.Id, childId)
		}
		return node, nil
	}
	return nil, fmt.Errorf("Unknown child property '%s'", childProperty)
}

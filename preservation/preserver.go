// Package preservation copies resources into the durable store and
// records what it copied in a PreservationObject. The fixity engine
// uses it to restore the durable copy after a repair.
package preservation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/fixity"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/network"
	"github.com/APTrust/fixity/util/storage"
	"github.com/satori/go.uuid"
	"io"
	"time"
)

// ErrNotPreservable means the preservation policy excludes the resource.
var ErrNotPreservable = errors.New("resource is excluded by the preservation policy")

// Preserver writes a resource's metadata and binaries to the durable
// store.
type Preserver struct {
	Objects      *storage.PreservationObjects
	LocalStore   network.BlobStore
	DurableStore network.BlobStore
	Policy       models.PreservationPolicy
}

func NewPreserver(objects *storage.PreservationObjects, localStore, durableStore network.BlobStore, policy models.PreservationPolicy) *Preserver {
	return &Preserver{
		Objects:      objects,
		LocalStore:   localStore,
		DurableStore: durableStore,
		Policy:       policy,
	}
}

// MetadataKey is the durable store key of a resource's metadata copy.
func MetadataKey(resourceId string) string {
	return fmt.Sprintf("%s/%s.json", resourceId, resourceId)
}

// BinaryKey is the durable store key of a preserved binary file.
func BinaryKey(resourceId, fileId string) string {
	return fmt.Sprintf("%s/%s", resourceId, fileId)
}

// Preserve copies the resource's metadata and every one of its local
// files to the durable store, then saves a new PreservationObject and
// prunes the older ones. The metadata node records the resource's
// lock token as of this copy.
//
// Local files whose checksums no longer match their recorded history
// are not copied: that would replace a good preserved copy with a bad
// one.
func (preserver *Preserver) Preserve(ctx context.Context, resource *models.Resource) (*models.PreservationObject, error) {
	if !preserver.Policy.ShouldPreserve(resource) {
		return nil, fmt.Errorf("%w: %s", ErrNotPreservable, resource.Id)
	}
	obj := models.NewPreservationObject(resource.Id)
	metadataNode, err := preserver.preserveMetadata(ctx, resource)
	if err != nil {
		return nil, err
	}
	obj.MetadataNode = metadataNode
	for _, file := range resource.Files {
		node, err := preserver.preserveFile(ctx, resource.Id, file)
		if err != nil {
			return nil, err
		}
		obj.BinaryNodes = append(obj.BinaryNodes, node)
	}
	obj.UpdatedAt = time.Now().UTC()
	if err := preserver.Objects.Save(obj); err != nil {
		return nil, err
	}
	if _, err := preserver.Objects.Current(resource.Id); err != nil {
		return nil, fmt.Errorf("Preserved %s but could not prune older copies: %v", resource.Id, err)
	}
	return obj, nil
}

func (preserver *Preserver) preserveMetadata(ctx context.Context, resource *models.Resource) (*models.FileNode, error) {
	data, err := resource.MetadataBytes()
	if err != nil {
		return nil, err
	}
	checksum, err := fixity.Compute(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	key := MetadataKey(resource.Id)
	err = preserver.DurableStore.Put(ctx, key, bytes.NewReader(data), int64(len(data)), constants.ContentTypeJson)
	if err != nil {
		return nil, err
	}
	return &models.FileNode{
		Id:             uuid.NewV4().String(),
		FileIdentifier: key,
		Checksum:       checksum,
		LockToken:      resource.LockToken,
		Size:           int64(len(data)),
	}, nil
}

func (preserver *Preserver) preserveFile(ctx context.Context, resourceId string, file *models.FileMetadata) (*models.FileNode, error) {
	localChecksum, err := preserver.localChecksum(ctx, file)
	if err != nil {
		return nil, err
	}
	if len(file.Checksums) > 0 && !fixity.Matches(localChecksum, file.Checksums) {
		return nil, fmt.Errorf("Local copy of file %s on %s does not match its recorded checksums",
			file.Id, resourceId)
	}
	reader, err := preserver.LocalStore.Get(ctx, file.FileIdentifier)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	size := file.Size
	if size <= 0 {
		size = -1
	}
	digester := fixity.NewDigester()
	key := BinaryKey(resourceId, file.Id)
	err = preserver.DurableStore.Put(ctx, key, io.TeeReader(reader, digester), size, constants.ContentTypeBinary)
	if err != nil {
		return nil, err
	}
	uploaded := digester.Sum()
	if !uploaded.Agrees(localChecksum) {
		return nil, fmt.Errorf("File %s on %s changed while it was being preserved", file.Id, resourceId)
	}
	return &models.FileNode{
		Id:              uuid.NewV4().String(),
		FileIdentifier:  key,
		Checksum:        uploaded,
		PreservedFileId: file.Id,
		Size:            file.Size,
	}, nil
}

func (preserver *Preserver) localChecksum(ctx context.Context, file *models.FileMetadata) (models.ChecksumRecord, error) {
	reader, err := preserver.LocalStore.Get(ctx, file.FileIdentifier)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return fixity.Compute(reader)
}

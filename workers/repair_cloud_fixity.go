package workers

import (
	gocontext "context"
	"errors"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/fixity"
	"github.com/APTrust/fixity/models"
	"io/ioutil"
)

// Repair outcomes.
const (
	RepairDeferred      = "deferred"
	RepairNothingToDo   = "nothing to repair"
	RepairRepreserved   = "re-preserved"
	RepairRestoredLocal = "restored local copy from preserved copy"
	RepairResourceGone  = "resource no longer exists"
)

// RepairCloudFixity repairs an entity whose cloud fixity check failed.
//
// A cloud check fails when the preserved copy is corrupt, missing or
// stale, so the first choice is to re-preserve from the local copy.
// Only when the local copy is not intact either does the repair
// restore it from the preserved copy, verified against the checksum
// recorded when it was preserved. Either way the owning resource is
// re-saved and re-preserved, so the preservation object captures its
// new lock token.
//
// The repair never writes a fixity event. The next verification pass
// decides whether it worked.
type RepairCloudFixity struct {
	*Runner
}

func NewRepairCloudFixity(_context *context.Context) *RepairCloudFixity {
	repairer := &RepairCloudFixity{}
	repairer.Runner = newRunner(_context, "repair_cloud_fixity",
		_context.Config.RepairCloudFixityWorker.Workers, repairer.parse, repairer.process)
	return repairer
}

func (repairer *RepairCloudFixity) parse(body []byte) (interface{}, string, error) {
	request := &models.RepairRequest{}
	err := models.ParseJobRequest(body, request)
	if err == nil && (request.ChildProperty == "" || request.ChildId == "") {
		err = fmt.Errorf("%w: cloud repairs need child_property and child_id",
			constants.ErrInvalidJobMessage)
	}
	return request, request.ResourceId, err
}

func (repairer *RepairCloudFixity) process(ctx gocontext.Context, request interface{}) (string, error) {
	return repairer.Repair(ctx, request.(*models.RepairRequest))
}

// Repair runs the repair while holding the lease on the resource. If
// another repair of the same resource is running, it requeues the
// request for later and returns RepairDeferred.
func (repairer *RepairCloudFixity) Repair(ctx gocontext.Context, request *models.RepairRequest) (string, error) {
	outcome := RepairDeferred
	topic := repairer.Context.Config.RepairCloudFixityWorker.NsqTopic
	_, err := withLease(repairer.Context, request.ResourceId, topic, request, func() error {
		var repairErr error
		outcome, repairErr = repairer.repair(ctx, request)
		return repairErr
	})
	return outcome, err
}

func (repairer *RepairCloudFixity) repair(ctx gocontext.Context, request *models.RepairRequest) (string, error) {
	entity := request.TrackedEntity()
	resource, err := repairer.Context.MetadataStore.FindById(request.ResourceId)
	if errors.Is(err, constants.ErrResourceNotFound) {
		repairer.Context.MessageLog.Info("Resource %s is gone. Not repairing %s.",
			request.ResourceId, entity.String())
		return RepairResourceGone, nil
	}
	if err != nil {
		return "", err
	}
	switch request.ChildProperty {
	case constants.ChildMetadataNode:
		return repairer.repairMetadata(ctx, resource)
	case constants.ChildBinaryNodes:
		return repairer.repairBinary(ctx, resource, request.ChildId)
	}
	return "", fmt.Errorf("%w: cannot repair child property '%s'",
		constants.ErrInvalidJobMessage, request.ChildProperty)
}

// repairMetadata restores the resource from its preserved metadata
// when that copy is intact and current. Otherwise the live resource
// is newer or the copy is bad, and the live resource is re-preserved.
func (repairer *RepairCloudFixity) repairMetadata(ctx gocontext.Context, resource *models.Resource) (string, error) {
	obj, err := repairer.Context.PreservationObjects.Current(resource.Id)
	if err != nil {
		return "", err
	}
	if obj != nil && obj.MetadataNode != nil && !repairer.isStale(obj, resource) {
		restored, err := repairer.fetchPreservedResource(ctx, obj.MetadataNode)
		if err == nil {
			restored.LockToken = resource.LockToken
			resource = restored
		} else if !errors.Is(err, constants.ErrRepairSourceUnavailable) {
			return "", err
		} else {
			repairer.Context.MessageLog.Warning("Preserved metadata for %s is unusable (%v). "+
				"Re-preserving from the live resource.", resource.Id, err)
		}
	}
	return repairer.saveAndPreserve(ctx, resource, RepairRepreserved)
}

func (repairer *RepairCloudFixity) isStale(obj *models.PreservationObject, resource *models.Resource) bool {
	recorded := obj.RecordedLockToken()
	return recorded != "" && recorded != resource.LockToken
}

func (repairer *RepairCloudFixity) fetchPreservedResource(ctx gocontext.Context, node *models.FileNode) (*models.Resource, error) {
	tempFile, err := fetchVerified(ctx, repairer.Context.DurableStore, node.FileIdentifier, node.Checksum)
	if err != nil {
		return nil, err
	}
	defer discardTempFile(tempFile)
	data, err := ioutil.ReadAll(tempFile)
	if err != nil {
		return nil, err
	}
	restored, err := models.ResourceFromJson(data)
	if err != nil {
		return nil, fmt.Errorf("%w: preserved metadata %s is not a resource: %v",
			constants.ErrRepairSourceUnavailable, node.FileIdentifier, err)
	}
	return restored, nil
}

// repairBinary re-preserves the file if its local copy is intact, and
// restores the local copy from the preserved one if not.
func (repairer *RepairCloudFixity) repairBinary(ctx gocontext.Context, resource *models.Resource, childId string) (string, error) {
	obj, err := repairer.Context.PreservationObjects.Current(resource.Id)
	if err != nil {
		return "", err
	}
	var node *models.FileNode
	fileId := childId
	if obj != nil {
		if node, err = obj.NodeFor(constants.ChildBinaryNodes, childId); err == nil {
			fileId = node.PreservedFileId
		}
	}
	file := resource.FileById(fileId)
	if file == nil {
		return "", fmt.Errorf("%w: resource %s has no file for binary node %s",
			constants.ErrRepairSourceUnavailable, resource.Id, childId)
	}
	intact, err := localCopyIntact(ctx, repairer.Context.LocalStore, file)
	if err != nil {
		return "", err
	}
	if intact {
		return repairer.saveAndPreserve(ctx, resource, RepairRepreserved)
	}
	if node == nil {
		return "", fmt.Errorf("%w: local copy of %s is damaged and there is no preserved copy",
			constants.ErrRepairSourceUnavailable, file.FileIdentifier)
	}
	if err := restoreLocalFile(ctx, repairer.Context, node, file); err != nil {
		return "", err
	}
	return repairer.saveAndPreserve(ctx, resource, RepairRestoredLocal)
}

func (repairer *RepairCloudFixity) saveAndPreserve(ctx gocontext.Context, resource *models.Resource, outcome string) (string, error) {
	saved, err := repairer.Context.MetadataStore.Save(resource)
	if err != nil {
		return "", err
	}
	if _, err := repairer.Context.Preserver.Preserve(ctx, saved); err != nil {
		return "", fmt.Errorf("Repaired %s but could not re-preserve it: %v", saved.Id, err)
	}
	repairer.Context.MessageLog.Info("Repaired %s: %s", saved.Id, outcome)
	return outcome, nil
}

// restoreLocalFile copies a preserved binary into the local store,
// after checking it against the node's checksum and the file's
// recorded checksums.
func restoreLocalFile(ctx gocontext.Context, _context *context.Context, node *models.FileNode, file *models.FileMetadata) error {
	tempFile, err := fetchVerified(ctx, _context.DurableStore, node.FileIdentifier, node.Checksum)
	if err != nil {
		return err
	}
	defer discardTempFile(tempFile)
	if len(file.Checksums) > 0 && !fixity.Matches(node.Checksum, file.Checksums) {
		return fmt.Errorf("%w: preserved copy %s does not match the recorded checksums of %s",
			constants.ErrRepairSourceUnavailable, node.FileIdentifier, file.Id)
	}
	size := file.Size
	if size <= 0 {
		size = -1
	}
	err = _context.LocalStore.Put(ctx, file.FileIdentifier, tempFile, size, constants.ContentTypeBinary)
	if err != nil {
		return fmt.Errorf("Cannot write restored copy of %s: %v", file.FileIdentifier, err)
	}
	_context.MessageLog.Info("Restored %s from %s", file.FileIdentifier,
		_context.DurableStore.Location(node.FileIdentifier))
	return nil
}

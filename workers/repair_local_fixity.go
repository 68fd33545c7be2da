package workers

import (
	gocontext "context"
	"errors"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/models"
)

// RepairLocalFixity restores the damaged or missing local files of a
// FileSet from their preserved copies. A file needs repair when its
// current local_fixity event is a FAILURE or when it is gone from the
// local store. Each preserved copy must agree both with the checksum
// recorded when it was preserved and with the file's recorded
// checksums before it replaces the local file.
//
// After a repair, the FileSet is re-saved and re-preserved, and a
// new local fixity check is queued. The repair itself writes no
// fixity events.
type RepairLocalFixity struct {
	*Runner
}

func NewRepairLocalFixity(_context *context.Context) *RepairLocalFixity {
	repairer := &RepairLocalFixity{}
	repairer.Runner = newRunner(_context, "repair_local_fixity",
		_context.Config.RepairLocalFixityWorker.Workers, repairer.parse, repairer.process)
	return repairer
}

func (repairer *RepairLocalFixity) parse(body []byte) (interface{}, string, error) {
	request := &models.RepairRequest{}
	err := models.ParseJobRequest(body, request)
	return request, request.ResourceId, err
}

func (repairer *RepairLocalFixity) process(ctx gocontext.Context, request interface{}) (string, error) {
	return repairer.Repair(ctx, request.(*models.RepairRequest).ResourceId)
}

// Repair runs the repair while holding the lease on the FileSet. If
// another repair holds the lease, the request is requeued for later
// and Repair returns RepairDeferred.
func (repairer *RepairLocalFixity) Repair(ctx gocontext.Context, fileSetId string) (string, error) {
	outcome := RepairDeferred
	topic := repairer.Context.Config.RepairLocalFixityWorker.NsqTopic
	request := &models.RepairRequest{ResourceId: fileSetId}
	_, err := withLease(repairer.Context, fileSetId, topic, request, func() error {
		var repairErr error
		outcome, repairErr = repairer.repair(ctx, fileSetId)
		return repairErr
	})
	return outcome, err
}

func (repairer *RepairLocalFixity) repair(ctx gocontext.Context, fileSetId string) (string, error) {
	fileSet, err := repairer.Context.MetadataStore.FindById(fileSetId)
	if errors.Is(err, constants.ErrResourceNotFound) {
		repairer.Context.MessageLog.Info("FileSet %s is gone. Nothing to repair.", fileSetId)
		return RepairResourceGone, nil
	}
	if err != nil {
		return "", err
	}
	damaged, err := repairer.damagedFiles(ctx, fileSet)
	if err != nil {
		return "", err
	}
	if len(damaged) == 0 {
		return RepairNothingToDo, nil
	}
	obj, err := repairer.Context.PreservationObjects.Current(fileSetId)
	if err != nil {
		return "", err
	}
	if obj == nil {
		return "", fmt.Errorf("%w: FileSet %s has never been preserved",
			constants.ErrRepairSourceUnavailable, fileSetId)
	}
	for _, file := range damaged {
		node := obj.BinaryNodeFor(file.Id)
		if node == nil {
			return "", fmt.Errorf("%w: FileSet %s has no preserved copy of file %s",
				constants.ErrRepairSourceUnavailable, fileSetId, file.Id)
		}
		if err := restoreLocalFile(ctx, repairer.Context, node, file); err != nil {
			return "", err
		}
	}
	saved, err := repairer.Context.MetadataStore.Save(fileSet)
	if err != nil {
		return "", err
	}
	if _, err := repairer.Context.Preserver.Preserve(ctx, saved); err != nil {
		return "", fmt.Errorf("Restored FileSet %s but could not re-preserve it: %v", fileSetId, err)
	}
	recheck := &models.LocalFixityRequest{FileSetId: fileSetId}
	if err := repairer.Context.Scheduler.Enqueue(repairer.Context.Config.LocalFixityWorker.NsqTopic, recheck); err != nil {
		repairer.Context.MessageLog.Warning("Restored FileSet %s but could not queue a new fixity check: %v",
			fileSetId, err)
	}
	return fmt.Sprintf("restored %d of %d files", len(damaged), len(fileSet.Files)), nil
}

// damagedFiles returns the files whose current local fixity event
// failed, plus any file missing from the local store.
func (repairer *RepairLocalFixity) damagedFiles(ctx gocontext.Context, fileSet *models.Resource) ([]*models.FileMetadata, error) {
	damaged := make([]*models.FileMetadata, 0)
	for _, file := range fileSet.Files {
		entity := models.NewTrackedEntity(fileSet.Id, constants.ChildFileMetadata, file.Id)
		current, err := repairer.Context.Ledger.CurrentEvent(entity)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Failed() {
			damaged = append(damaged, file)
			continue
		}
		exists, err := repairer.Context.LocalStore.Exists(ctx, file.FileIdentifier)
		if err != nil {
			return nil, err
		}
		if !exists {
			damaged = append(damaged, file)
		}
	}
	return damaged, nil
}

package workers

import (
	gocontext "context"
	"errors"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/fixity"
	"github.com/APTrust/fixity/models"
)

// LocalFixityResult describes one local fixity check of a FileSet.
type LocalFixityResult struct {
	FileSetId string
	Events    []*models.FixityEvent

	// Orphaned is true if the FileSet's file was missing and the
	// FileSet had no live parent, so the checker deleted it.
	Orphaned bool
}

// Failures returns the number of FAILURE events the check wrote.
func (result *LocalFixityResult) Failures() int {
	count := 0
	for _, event := range result.Events {
		if event.Failed() {
			count++
		}
	}
	return count
}

func (result *LocalFixityResult) String() string {
	if result.Orphaned {
		return fmt.Sprintf("deleted orphaned FileSet %s", result.FileSetId)
	}
	return fmt.Sprintf("checked %d files, %d failed", len(result.Events), result.Failures())
}

// LocalFixityChecker recomputes the checksums of the files in the
// local blob store and compares them to the checksums recorded in
// the metadata store. It never modifies the files and never repairs
// them.
type LocalFixityChecker struct {
	*Runner
}

func NewLocalFixityChecker(_context *context.Context) *LocalFixityChecker {
	checker := &LocalFixityChecker{}
	checker.Runner = newRunner(_context, constants.EventLocalFixity,
		_context.Config.LocalFixityWorker.Workers, checker.parse, checker.process)
	return checker
}

func (checker *LocalFixityChecker) parse(body []byte) (interface{}, string, error) {
	request := &models.LocalFixityRequest{}
	err := models.ParseJobRequest(body, request)
	return request, request.FileSetId, err
}

func (checker *LocalFixityChecker) process(ctx gocontext.Context, request interface{}) (string, error) {
	result, err := checker.Check(ctx, request.(*models.LocalFixityRequest).FileSetId)
	if result == nil {
		return "", err
	}
	return result.String(), err
}

// Check verifies each role of the FileSet that has recorded
// checksums, in the order original, intermediate, preservation, and
// writes one local_fixity event per file checked.
func (checker *LocalFixityChecker) Check(ctx gocontext.Context, fileSetId string) (*LocalFixityResult, error) {
	result := &LocalFixityResult{
		FileSetId: fileSetId,
		Events:    make([]*models.FixityEvent, 0),
	}
	fileSet, err := checker.Context.MetadataStore.FindById(fileSetId)
	if errors.Is(err, constants.ErrResourceNotFound) {
		checker.Context.MessageLog.Info("FileSet %s no longer exists. Nothing to check.", fileSetId)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	for _, role := range constants.FileRoles {
		file := fileSet.FileForRole(role)
		if file == nil || len(file.Checksums) == 0 {
			continue
		}
		checksum, err := checker.computeLocal(ctx, file)
		if errors.Is(err, constants.ErrFileNotFound) {
			orphaned, orphanErr := checker.deleteIfOrphaned(fileSet)
			if orphanErr != nil {
				return result, orphanErr
			}
			if orphaned {
				result.Orphaned = true
				return result, nil
			}
			return result, fmt.Errorf("Local file %s of FileSet %s is missing: %w",
				file.FileIdentifier, fileSetId, err)
		}
		if err != nil {
			return result, err
		}
		event, err := checker.record(fileSet, file, checksum)
		if err != nil {
			return result, err
		}
		result.Events = append(result.Events, event)
	}
	return result, nil
}

func (checker *LocalFixityChecker) computeLocal(ctx gocontext.Context, file *models.FileMetadata) (models.ChecksumRecord, error) {
	reader, err := checker.Context.LocalStore.Get(ctx, file.FileIdentifier)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return fixity.Compute(reader)
}

func (checker *LocalFixityChecker) record(fileSet *models.Resource, file *models.FileMetadata, checksum models.ChecksumRecord) (*models.FixityEvent, error) {
	entity := models.NewTrackedEntity(fileSet.Id, constants.ChildFileMetadata, file.Id)
	status := constants.StatusSuccess
	message := ""
	if !fixity.Matches(checksum, file.Checksums) {
		status = constants.StatusFailure
		message = checksum.String()
	}
	event, err := checker.Context.Ledger.Record(
		models.NewFixityEvent(constants.EventLocalFixity, status, entity, message), &entity)
	if err != nil {
		return nil, err
	}
	if event.Failed() {
		checker.Context.MessageLog.Warning("Local fixity FAILED for %s (%s): computed %s",
			entity.String(), file.Role, message)
		sendAlert(checker.Context, event, checker.Context.LocalStore.Location(file.FileIdentifier))
	}
	return event, nil
}

// deleteIfOrphaned deletes the FileSet if it has no live parent: no
// parent id, a parent that no longer exists, or a parent that no
// longer lists it as a member.
func (checker *LocalFixityChecker) deleteIfOrphaned(fileSet *models.Resource) (bool, error) {
	if fileSet.ParentId != "" {
		parent, err := checker.Context.MetadataStore.FindById(fileSet.ParentId)
		if err != nil && !errors.Is(err, constants.ErrResourceNotFound) {
			return false, err
		}
		if parent != nil && parent.HasMember(fileSet.Id) {
			return false, nil
		}
	}
	checker.Context.MessageLog.Warning("Deleting orphaned FileSet %s: its file is missing "+
		"and it has no live parent.", fileSet.Id)
	if err := checker.Context.MetadataStore.Delete(fileSet.Id); err != nil {
		return false, err
	}
	return true, nil
}

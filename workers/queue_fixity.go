package workers

import (
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/models"
	"strings"
	"time"
)

// QueueFixity pushes FileSets in need of a local fixity check into
// the local fixity topic, and FileSets whose current check failed
// into the local repair topic.
type QueueFixity struct {
	Context        *context.Context
	maxFiles       int
	identifierLike string
}

// NewQueueFixity creates a new fixity queuer. Param maxFiles is the
// maximum number of FileSets to queue per run. Param identifierLike,
// if not empty, limits the run to FileSets whose id contains it.
func NewQueueFixity(_context *context.Context, identifierLike string, maxFiles int) *QueueFixity {
	return &QueueFixity{
		Context:        _context,
		maxFiles:       maxFiles,
		identifierLike: identifierLike,
	}
}

// QueueFixityResult counts what one run queued.
type QueueFixityResult struct {
	ChecksQueued  int
	RepairsQueued int
}

// Run queues a local fixity check for every FileSet that has a file
// with recorded checksums and no local_fixity event newer than
// MaxDaysSinceFixityCheck days. It queues a local repair instead for
// FileSets with a failed current check. It stops after maxFiles.
func (queuer *QueueFixity) Run() (*QueueFixityResult, error) {
	result := &QueueFixityResult{}
	hours := queuer.Context.Config.MaxDaysSinceFixityCheck * 24 * -1
	sinceWhen := time.Now().Add(time.Duration(hours) * time.Hour).UTC()
	checkTopic := queuer.Context.Config.LocalFixityWorker.NsqTopic
	repairTopic := queuer.Context.Config.RepairLocalFixityWorker.NsqTopic
	queuer.Context.MessageLog.Info("Queuing up to %d FileSets not checked since %s to topic %s",
		queuer.maxFiles, sinceWhen.Format(time.RFC3339), checkTopic)

	err := queuer.Context.MetadataStore.ForEach(func(resource *models.Resource) error {
		if queuer.maxFiles > 0 && result.ChecksQueued+result.RepairsQueued >= queuer.maxFiles {
			return errStopIteration
		}
		if !resource.IsFileSet() {
			return nil
		}
		if queuer.identifierLike != "" && !strings.Contains(resource.Id, queuer.identifierLike) {
			return nil
		}
		needsCheck, failed, err := queuer.inspect(resource, sinceWhen)
		if err != nil {
			return err
		}
		if failed {
			if queuer.enqueue(repairTopic, resource.Id, &models.RepairRequest{ResourceId: resource.Id}) {
				result.RepairsQueued++
			}
		} else if needsCheck {
			if queuer.enqueue(checkTopic, resource.Id, &models.LocalFixityRequest{FileSetId: resource.Id}) {
				result.ChecksQueued++
			}
		}
		return nil
	})
	if err == errStopIteration {
		err = nil
	}
	queuer.Context.MessageLog.Info("Queued %d fixity checks and %d repairs",
		result.ChecksQueued, result.RepairsQueued)
	return result, err
}

// inspect reports whether any checked file of the FileSet is due for
// a check, and whether any has a failed current check.
func (queuer *QueueFixity) inspect(fileSet *models.Resource, sinceWhen time.Time) (needsCheck, failed bool, err error) {
	events, err := queuer.Context.Ledger.CurrentForResource(fileSet.Id, constants.EventLocalFixity)
	if err != nil {
		return false, false, err
	}
	latest := make(map[string]*models.FixityEvent, len(events))
	for _, event := range events {
		latest[event.ChildId] = event
	}
	for _, file := range fileSet.Files {
		if len(file.Checksums) == 0 {
			continue
		}
		event := latest[file.Id]
		if event == nil || event.CreatedAt.Before(sinceWhen) {
			needsCheck = true
		} else if event.Failed() {
			failed = true
		}
	}
	return needsCheck, failed, nil
}

func (queuer *QueueFixity) enqueue(topic, id string, request interface{}) bool {
	err := queuer.Context.Scheduler.Enqueue(topic, request)
	if err != nil {
		queuer.Context.MessageLog.Error("Error sending '%s' to %s: %v", id, topic, err)
		return false
	}
	queuer.Context.MessageLog.Info("Added '%s' to %s", id, topic)
	return true
}

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

// CloudFixityResult describes what one cloud fixity verification did.
type CloudFixityResult struct {
	Entity models.TrackedEntity

	// Skipped is true if the resource no longer exists. Nothing was
	// written and no one was alerted.
	Skipped bool

	Transition fixity.Transition
	Event      *models.FixityEvent
}

func (result *CloudFixityResult) String() string {
	if result.Skipped {
		return fmt.Sprintf("skipped %s: resource no longer exists", result.Entity.String())
	}
	description := result.Transition.Status
	if result.Transition.Overridden {
		description += " (stale lock token)"
	}
	if result.Transition.ScheduleRepair {
		description += ", repair scheduled"
	}
	return description
}

// CloudFixityVerifier turns the signal from a remote integrity check
// of a preserved copy into a cloud_fixity event, and schedules a
// repair when the copy needs one.
type CloudFixityVerifier struct {
	*Runner
}

func NewCloudFixityVerifier(_context *context.Context) *CloudFixityVerifier {
	verifier := &CloudFixityVerifier{}
	verifier.Runner = newRunner(_context, constants.EventCloudFixity,
		_context.Config.CloudFixityWorker.Workers, verifier.parse, verifier.process)
	// Each message carries its own signal. A FAILURE must not be lost
	// behind a SUCCESS for the same entity.
	verifier.RequeueDuplicates = true
	return verifier
}

func (verifier *CloudFixityVerifier) parse(body []byte) (interface{}, string, error) {
	request := &models.CloudFixityRequest{}
	err := models.ParseJobRequest(body, request)
	return request, request.TrackedEntity().Key(), err
}

func (verifier *CloudFixityVerifier) process(ctx gocontext.Context, request interface{}) (string, error) {
	result, err := verifier.Verify(ctx, request.(*models.CloudFixityRequest))
	if result == nil {
		return "", err
	}
	return result.String(), err
}

// Verify applies the guards and the transition rules to the reported
// status and records the outcome.
//
// If the resource is gone, Verify does nothing. If the preserved
// copy's lock token is not empty and differs from the resource's,
// the copy is stale and the status is treated as FAILURE whatever the
// remote check said. A FAILURE right after REPAIRING is recorded and
// alerted but not repaired again.
func (verifier *CloudFixityVerifier) Verify(ctx gocontext.Context, request *models.CloudFixityRequest) (*CloudFixityResult, error) {
	entity := request.TrackedEntity()
	result := &CloudFixityResult{Entity: entity}
	resource, err := verifier.Context.MetadataStore.FindById(request.ResourceId)
	if errors.Is(err, constants.ErrResourceNotFound) {
		verifier.Context.MessageLog.Info("Resource %s was deleted. Skipping cloud fixity for %s.",
			request.ResourceId, entity.String())
		result.Skipped = true
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	obj, err := verifier.Context.PreservationObjects.Current(resource.Id)
	if err != nil {
		return nil, err
	}
	guards := fixity.Guards{CurrentLockToken: resource.LockToken}
	if obj != nil {
		guards.RecordedLockToken = obj.RecordedLockToken()
	}
	previous, err := verifier.Context.Ledger.CurrentEvent(entity)
	if err != nil {
		return nil, err
	}
	previousStatus := ""
	if previous != nil {
		previousStatus = previous.Status
	}
	result.Transition = fixity.NextState(previousStatus, request.Status, guards)

	event := models.NewFixityEvent(constants.EventCloudFixity, result.Transition.Status,
		entity, verifier.eventMessage(request, guards))

	// The repair goes out before the event is recorded. A retry after
	// a failed Record may queue a second repair; the lease absorbs it.
	if result.Transition.ScheduleRepair {
		repair := &models.RepairRequest{
			ResourceId:    entity.ResourceId,
			ChildProperty: entity.ChildProperty,
			ChildId:       entity.ChildId,
			EventId:       event.Id,
		}
		topic := verifier.Context.Config.RepairCloudFixityWorker.NsqTopic
		if err := verifier.Context.Scheduler.Enqueue(topic, repair); err != nil {
			return nil, fmt.Errorf("Cannot schedule repair of %s: %v", entity.String(), err)
		}
	}
	result.Event, err = verifier.Context.Ledger.Record(event, &entity)
	if err != nil {
		return nil, err
	}
	if result.Transition.Alert {
		verifier.Context.MessageLog.Warning("Cloud fixity %s for %s: %s",
			result.Event.Status, entity.String(), result.Event.Message)
		sendAlert(verifier.Context, result.Event, verifier.location(obj, entity))
	}
	return result, nil
}

func (verifier *CloudFixityVerifier) eventMessage(request *models.CloudFixityRequest, guards fixity.Guards) string {
	if guards.StaleLock() {
		return fmt.Sprintf("Preserved copy is stale: recorded lock token %s, current lock token %s. "+
			"Remote check reported %s.", guards.RecordedLockToken, guards.CurrentLockToken, request.Status)
	}
	return fmt.Sprintf("Remote check reported %s.", request.Status)
}

func (verifier *CloudFixityVerifier) location(obj *models.PreservationObject, entity models.TrackedEntity) string {
	if obj == nil {
		return entity.String()
	}
	node, err := obj.NodeFor(entity.ChildProperty, entity.ChildId)
	if err != nil {
		return entity.String()
	}
	return verifier.Context.DurableStore.Location(node.FileIdentifier)
}

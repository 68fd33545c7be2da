package workers

import (
	"bytes"
	gocontext "context"
	"errors"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/fixity"
	"github.com/APTrust/fixity/models"
	"golang.org/x/sync/errgroup"
	"sync/atomic"
)

// PreservationAudit confirms that every resource the preservation
// policy covers has an intact preserved copy whose metadata matches
// the live resource. It writes one PreservationCheckFailure per
// failing resource and changes nothing else. In particular it reads
// preservation objects without pruning them.
type PreservationAudit struct {
	*Runner
}

func NewPreservationAudit(_context *context.Context) *PreservationAudit {
	audit := &PreservationAudit{}
	audit.Runner = newRunner(_context, "preservation_audit",
		_context.Config.AuditWorker.Workers, audit.parse, audit.process)
	return audit
}

func (audit *PreservationAudit) parse(body []byte) (interface{}, string, error) {
	request := &models.AuditRequest{}
	err := models.ParseJobRequest(body, request)
	return request, fmt.Sprintf("%s/%s", request.AuditId, request.ResourceId), err
}

func (audit *PreservationAudit) process(ctx gocontext.Context, request interface{}) (string, error) {
	auditRequest := request.(*models.AuditRequest)
	if auditRequest.IsSweep() {
		failures, err := audit.Run(ctx, auditRequest.AuditId)
		return fmt.Sprintf("audit %s found %d failures", auditRequest.AuditId, failures), err
	}
	failure, err := audit.CheckResource(ctx, auditRequest.ResourceId, auditRequest.AuditId)
	if err != nil || failure == nil {
		return "passed", err
	}
	return "failed: " + failure.Reason, nil
}

// Run checks every resource in the metadata store, up to
// AuditWorker.Workers at a time, and returns the number of resources
// that failed. It stops at the first error that is not a check
// failure.
func (audit *PreservationAudit) Run(ctx gocontext.Context, auditId string) (int, error) {
	var failures int64
	group, groupCtx := errgroup.WithContext(ctx)
	workers := audit.Context.Config.AuditWorker.Workers
	if workers < 1 {
		workers = 1
	}
	group.SetLimit(workers)
	err := audit.Context.MetadataStore.ForEach(func(resource *models.Resource) error {
		if err := groupCtx.Err(); err != nil {
			return err
		}
		resourceId := resource.Id
		group.Go(func() error {
			failure, err := audit.CheckResource(groupCtx, resourceId, auditId)
			if failure != nil {
				atomic.AddInt64(&failures, 1)
			}
			return err
		})
		return nil
	})
	waitErr := group.Wait()
	if waitErr != nil {
		err = waitErr
	}
	count := int(atomic.LoadInt64(&failures))
	audit.Context.MessageLog.Info("Audit %s finished with %d failures", auditId, count)
	return count, err
}

// CheckResource checks one resource and returns the failure it
// recorded, or nil if the resource passed or is not covered by the
// preservation policy.
func (audit *PreservationAudit) CheckResource(ctx gocontext.Context, resourceId, auditId string) (*models.PreservationCheckFailure, error) {
	resource, err := audit.Context.MetadataStore.FindById(resourceId)
	if errors.Is(err, constants.ErrResourceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !audit.Context.Policy.ShouldPreserve(resource) {
		return nil, nil
	}
	reason, err := audit.findProblem(ctx, resource)
	if err != nil || reason == "" {
		return nil, err
	}
	failure := models.NewPreservationCheckFailure(resourceId, auditId, reason)
	if err := audit.Context.AuditFailures.Save(failure); err != nil {
		return nil, err
	}
	audit.Context.MessageLog.Warning("Audit %s: %s failed: %s", auditId, resourceId, reason)
	return failure, nil
}

// findProblem returns a description of the first thing wrong with
// the resource's preserved copy, or an empty string.
func (audit *PreservationAudit) findProblem(ctx gocontext.Context, resource *models.Resource) (string, error) {
	objs, err := audit.Context.PreservationObjects.ForResource(resource.Id)
	if err != nil {
		return "", err
	}
	if len(objs) == 0 {
		return "no preservation object", nil
	}
	obj := objs[0]
	if obj.MetadataNode == nil {
		return "preservation object has no metadata node", nil
	}
	if reason, err := audit.checkNode(ctx, obj.MetadataNode); reason != "" || err != nil {
		return "metadata node " + reason, err
	}
	data, err := resource.MetadataBytes()
	if err != nil {
		return "", err
	}
	liveChecksum, err := fixity.Compute(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if !liveChecksum.Agrees(obj.MetadataNode.Checksum) {
		return "preserved metadata does not match the live resource", nil
	}
	for _, file := range resource.Files {
		node := obj.BinaryNodeFor(file.Id)
		if node == nil {
			return fmt.Sprintf("file %s has no binary node", file.Id), nil
		}
		if reason, err := audit.checkNode(ctx, node); reason != "" || err != nil {
			return fmt.Sprintf("binary node for file %s %s", file.Id, reason), err
		}
	}
	return "", nil
}

// checkNode fetches a preserved copy and compares it to the node's
// recorded checksum.
func (audit *PreservationAudit) checkNode(ctx gocontext.Context, node *models.FileNode) (string, error) {
	tempFile, err := fetchVerified(ctx, audit.Context.DurableStore, node.FileIdentifier, node.Checksum)
	if err == nil {
		discardTempFile(tempFile)
		return "", nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(err, constants.ErrRepairSourceUnavailable) {
		return "is missing or does not match its checksum", nil
	}
	return fmt.Sprintf("cannot be fetched: %v", err), nil
}

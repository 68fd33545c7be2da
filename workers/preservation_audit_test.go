package workers_test

import (
	gocontext "context"
	"github.com/APTrust/fixity/preservation"
	"github.com/APTrust/fixity/util/testutil"
	"github.com/APTrust/fixity/workers"
	"github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestAuditWithNoFailures(t *testing.T) {
	testContext := testutil.GetContext(t)
	for i := 0; i < 5; i++ {
		testutil.CreatePreservedResource(t, testContext)
	}
	testutil.CreatePreservedFileSet(t, testContext, "one", "two", "three")
	audit := workers.NewPreservationAudit(testContext.Context)
	auditId := uuid.NewV4().String()

	failures, err := audit.Run(gocontext.Background(), auditId)
	require.Nil(t, err)
	assert.Equal(t, 0, failures)
	rows, err := testContext.AuditFailures.ForAudit(auditId)
	require.Nil(t, err)
	assert.Empty(t, rows)
}

func TestAuditWithOneFailure(t *testing.T) {
	testContext := testutil.GetContext(t)
	for i := 0; i < 3; i++ {
		testutil.CreatePreservedResource(t, testContext)
	}
	unpreserved, err := testContext.MetadataStore.Save(testutil.MakeResource())
	require.Nil(t, err)
	audit := workers.NewPreservationAudit(testContext.Context)
	auditId := uuid.NewV4().String()

	failures, err := audit.Run(gocontext.Background(), auditId)
	require.Nil(t, err)
	assert.Equal(t, 1, failures)
	rows, err := testContext.AuditFailures.ForAudit(auditId)
	require.Nil(t, err)
	require.Equal(t, 1, len(rows))
	assert.Equal(t, unpreserved.Id, rows[0].ResourceId)
	assert.Equal(t, "no preservation object", rows[0].Reason)

	// A second run of the same audit leaves one row per resource.
	_, err = audit.Run(gocontext.Background(), auditId)
	require.Nil(t, err)
	rows, err = testContext.AuditFailures.ForAudit(auditId)
	require.Nil(t, err)
	assert.Equal(t, 1, len(rows))
}

func TestAuditSkipsResourcesOutsidePolicy(t *testing.T) {
	testContext := testutil.GetContext(t)
	notPreserved := testutil.MakeResource()
	notPreserved.Preserve = false
	_, err := testContext.MetadataStore.Save(notPreserved)
	require.Nil(t, err)
	excluded := testutil.MakeResource()
	excluded.Type = "Template"
	_, err = testContext.MetadataStore.Save(excluded)
	require.Nil(t, err)
	audit := workers.NewPreservationAudit(testContext.Context)

	failures, err := audit.Run(gocontext.Background(), uuid.NewV4().String())
	require.Nil(t, err)
	assert.Equal(t, 0, failures)
}

func TestAuditDetectsStaleMetadata(t *testing.T) {
	testContext := testutil.GetContext(t)
	resource, _ := testutil.CreatePreservedResource(t, testContext)
	resource.Attributes["title"] = "Changed since preservation"
	_, err := testContext.MetadataStore.Save(resource)
	require.Nil(t, err)
	audit := workers.NewPreservationAudit(testContext.Context)

	failure, err := audit.CheckResource(gocontext.Background(), resource.Id, "audit-1")
	require.Nil(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, "preserved metadata does not match the live resource", failure.Reason)
}

func TestAuditDetectsMissingMetadataCopy(t *testing.T) {
	testContext := testutil.GetContext(t)
	resource, _ := testutil.CreatePreservedResource(t, testContext)
	err := testContext.DurableStore.Delete(gocontext.Background(), preservation.MetadataKey(resource.Id))
	require.Nil(t, err)
	audit := workers.NewPreservationAudit(testContext.Context)

	failure, err := audit.CheckResource(gocontext.Background(), resource.Id, "audit-1")
	require.Nil(t, err)
	require.NotNil(t, failure)
	assert.Contains(t, failure.Reason, "metadata node is missing")
}

func TestAuditDetectsCorruptBinary(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "first", "second")
	testutil.WriteDurable(t, testContext, obj.BinaryNodeFor("file-2").FileIdentifier, "corrupted")
	audit := workers.NewPreservationAudit(testContext.Context)

	failure, err := audit.CheckResource(gocontext.Background(), fileSet.Id, "audit-1")
	require.Nil(t, err)
	require.NotNil(t, failure)
	assert.Contains(t, failure.Reason, "binary node for file file-2")
}

func TestAuditDetectsMissingBinaryNode(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "first", "second")
	obj.BinaryNodes = obj.BinaryNodes[:1]
	require.Nil(t, testContext.PreservationObjects.Save(obj))
	audit := workers.NewPreservationAudit(testContext.Context)

	failure, err := audit.CheckResource(gocontext.Background(), fileSet.Id, "audit-1")
	require.Nil(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, "file file-2 has no binary node", failure.Reason)
}

func TestAuditChangesNothing(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "read only")
	older := *obj
	older.Id = uuid.NewV4().String()
	older.UpdatedAt = obj.UpdatedAt.Add(-time.Hour)
	require.Nil(t, testContext.PreservationObjects.Save(&older))
	audit := workers.NewPreservationAudit(testContext.Context)

	failure, err := audit.CheckResource(gocontext.Background(), fileSet.Id, "audit-1")
	require.Nil(t, err)
	assert.Nil(t, failure)

	after, err := testContext.MetadataStore.FindById(fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, fileSet.LockToken, after.LockToken)
	objs, err := testContext.PreservationObjects.ForResource(fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, 2, len(objs))
}

func TestAuditMissingResource(t *testing.T) {
	testContext := testutil.GetContext(t)
	audit := workers.NewPreservationAudit(testContext.Context)
	failure, err := audit.CheckResource(gocontext.Background(), "res-gone", "audit-1")
	require.Nil(t, err)
	assert.Nil(t, failure)
}

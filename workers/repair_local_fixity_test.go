package workers_test

import (
	gocontext "context"
	"encoding/json"
	"errors"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/util/testutil"
	"github.com/APTrust/fixity/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestRepairLocalRestoresFailedFile(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "first file", "second file")
	testutil.WriteLocal(t, testContext, fileSet.Files[1].FileIdentifier, "second file, damaged")
	checker := workers.NewLocalFixityChecker(testContext.Context)
	result, err := checker.Check(gocontext.Background(), fileSet.Id)
	require.Nil(t, err)
	require.Equal(t, 1, result.Failures())
	repairer := workers.NewRepairLocalFixity(testContext.Context)

	outcome, err := repairer.Repair(gocontext.Background(), fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, "restored 1 of 2 files", outcome)
	content, err := testutil.ReadLocal(t, testContext, fileSet.Files[1].FileIdentifier)
	require.Nil(t, err)
	assert.Equal(t, "second file", content)
	assertRepreserved(t, testContext, fileSet.Id, obj)

	jobs := testContext.Scheduler.JobsFor(testContext.Config.LocalFixityWorker.NsqTopic)
	require.Equal(t, 1, len(jobs))
	recheck := &models.LocalFixityRequest{}
	require.Nil(t, json.Unmarshal(jobs[0].Body, recheck))
	assert.Equal(t, fileSet.Id, recheck.FileSetId)

	// The recheck finds the file intact again.
	result, err = checker.Check(gocontext.Background(), fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, 0, result.Failures())
}

func TestRepairLocalRestoresMissingFile(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, _ := testutil.CreatePreservedFileSet(t, testContext, "will go missing")
	err := testContext.LocalStore.Delete(gocontext.Background(), fileSet.Files[0].FileIdentifier)
	require.Nil(t, err)
	repairer := workers.NewRepairLocalFixity(testContext.Context)

	outcome, err := repairer.Repair(gocontext.Background(), fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, "restored 1 of 1 files", outcome)
	content, err := testutil.ReadLocal(t, testContext, fileSet.Files[0].FileIdentifier)
	require.Nil(t, err)
	assert.Equal(t, "will go missing", content)
}

func TestRepairLocalNothingToDo(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "healthy")
	repairer := workers.NewRepairLocalFixity(testContext.Context)

	outcome, err := repairer.Repair(gocontext.Background(), fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, workers.RepairNothingToDo, outcome)
	assert.Equal(t, 0, testContext.Scheduler.Count())
	current, err := testContext.PreservationObjects.Current(fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, obj.Id, current.Id)
}

func TestRepairLocalNeverPreserved(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet := testutil.CreateFileSet(t, testContext, "never preserved")
	err := testContext.LocalStore.Delete(gocontext.Background(), fileSet.Files[0].FileIdentifier)
	require.Nil(t, err)
	repairer := workers.NewRepairLocalFixity(testContext.Context)

	_, err = repairer.Repair(gocontext.Background(), fileSet.Id)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, constants.ErrRepairSourceUnavailable))
}

func TestRepairLocalCorruptPreservedCopy(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "both copies go bad")
	testutil.WriteLocal(t, testContext, fileSet.Files[0].FileIdentifier, "local rot")
	testutil.WriteDurable(t, testContext, obj.BinaryNodes[0].FileIdentifier, "cloud rot")
	repairer := workers.NewRepairLocalFixity(testContext.Context)
	checker := workers.NewLocalFixityChecker(testContext.Context)
	_, err := checker.Check(gocontext.Background(), fileSet.Id)
	require.Nil(t, err)

	_, err = repairer.Repair(gocontext.Background(), fileSet.Id)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, constants.ErrRepairSourceUnavailable))
	content, err := testutil.ReadLocal(t, testContext, fileSet.Files[0].FileIdentifier)
	require.Nil(t, err)
	assert.Equal(t, "local rot", content)
}

func TestRepairLocalDefersWhenLeaseIsHeld(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, _ := testutil.CreatePreservedFileSet(t, testContext, "busy")
	_, err := testContext.Leases.Acquire(fileSet.Id, "another-repair", time.Minute)
	require.Nil(t, err)
	repairer := workers.NewRepairLocalFixity(testContext.Context)

	outcome, err := repairer.Repair(gocontext.Background(), fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, workers.RepairDeferred, outcome)
	jobs := testContext.Scheduler.JobsFor(testContext.Config.RepairLocalFixityWorker.NsqTopic)
	require.Equal(t, 1, len(jobs))
	request := &models.RepairRequest{}
	require.Nil(t, json.Unmarshal(jobs[0].Body, request))
	assert.Equal(t, fileSet.Id, request.ResourceId)
}

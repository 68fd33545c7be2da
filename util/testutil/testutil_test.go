package testutil_test

import (
	"encoding/json"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"
)

func TestGetContext(t *testing.T) {
	testContext := testutil.GetContext(t)
	require.NotNil(t, testContext.BoltDB)
	require.NotNil(t, testContext.Preserver)
	assert.Equal(t, constants.StoreDisk, testContext.Config.DurableStore.Provider)
	assert.NotEqual(t, testContext.LocalDiskStore.Root(), testContext.DurableDisk.Root())
}

func TestCreatePreservedFileSet(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "one", "two")
	require.Equal(t, 2, len(fileSet.Files))
	assert.Equal(t, constants.RoleOriginal, fileSet.Files[0].Role)
	assert.Equal(t, constants.RoleIntermediate, fileSet.Files[1].Role)
	assert.NotEmpty(t, fileSet.LockToken)

	require.NotNil(t, obj.MetadataNode)
	assert.Equal(t, fileSet.LockToken, obj.MetadataNode.LockToken)
	require.Equal(t, 2, len(obj.BinaryNodes))
	assert.True(t, obj.BinaryNodes[0].Checksum.Agrees(fileSet.Files[0].Checksums[0]))
}

func TestRecordingScheduler(t *testing.T) {
	scheduler := testutil.NewRecordingScheduler()
	require.Nil(t, scheduler.Enqueue("a", &models.LocalFixityRequest{FileSetId: "fs1"}))
	require.Nil(t, scheduler.EnqueueLater("b", &models.LocalFixityRequest{FileSetId: "fs2"}, time.Minute))
	assert.Equal(t, 2, scheduler.Count())
	jobs := scheduler.JobsFor("b")
	require.Equal(t, 1, len(jobs))
	assert.Equal(t, time.Minute, jobs[0].Delay)
	request := &models.LocalFixityRequest{}
	require.Nil(t, json.Unmarshal(jobs[0].Body, request))
	assert.Equal(t, "fs2", request.FileSetId)
}

func TestMakeNsqMessage(t *testing.T) {
	message, delegate := testutil.MakeNsqMessage([]byte("hello"))
	assert.Equal(t, "hello", string(message.Body))
	message.Requeue(5 * time.Second)
	assert.Equal(t, "requeue", delegate.Operation())
	assert.Equal(t, 5*time.Second, delegate.Delay())
}

func TestFindSummaryInLog(t *testing.T) {
	first := models.NewWorkSummary("local_fixity", "fs1")
	first.AddError("first attempt failed")
	second := models.NewWorkSummary("local_fixity", "fs1")
	second.Outcome = constants.StatusSuccess
	other := models.NewWorkSummary("cloud_fixity", "fs1")
	lines := ""
	for _, summary := range []*models.WorkSummary{first, other, second} {
		data, err := json.Marshal(summary)
		require.Nil(t, err)
		lines += string(data) + "\n"
	}
	pathToLog := filepath.Join(t.TempDir(), "worker.json")
	require.Nil(t, ioutil.WriteFile(pathToLog, []byte("not json\n"+lines), 0644))

	found, err := testutil.FindSummaryInLog(pathToLog, "local_fixity", "fs1")
	require.Nil(t, err)
	assert.Equal(t, constants.StatusSuccess, found.Outcome)

	_, err = testutil.FindSummaryInLog(pathToLog, "local_fixity", "fs2")
	assert.NotNil(t, err)
}

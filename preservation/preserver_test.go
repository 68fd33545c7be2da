package preservation_test

import (
	gocontext "context"
	"errors"
	"github.com/APTrust/fixity/fixity"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/preservation"
	"github.com/APTrust/fixity/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "res-1/res-1.json", preservation.MetadataKey("res-1"))
	assert.Equal(t, "fs-1/file-2", preservation.BinaryKey("fs-1", "file-2"))
}

func TestPreserveFileSet(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet := testutil.CreateFileSet(t, testContext, "first file", "second file")

	obj, err := testContext.Preserver.Preserve(gocontext.Background(), fileSet)
	require.Nil(t, err)
	assert.Equal(t, fileSet.Id, obj.PreservedObjectId)
	require.NotNil(t, obj.MetadataNode)
	assert.Equal(t, preservation.MetadataKey(fileSet.Id), obj.MetadataNode.FileIdentifier)
	assert.Equal(t, fileSet.LockToken, obj.RecordedLockToken())

	metadata, err := testutil.ReadDurable(t, testContext, obj.MetadataNode.FileIdentifier)
	require.Nil(t, err)
	expected, err := fileSet.MetadataBytes()
	require.Nil(t, err)
	assert.Equal(t, string(expected), metadata)

	require.Equal(t, 2, len(obj.BinaryNodes))
	for i, file := range fileSet.Files {
		node := obj.BinaryNodeFor(file.Id)
		require.NotNil(t, node, file.Id)
		assert.Equal(t, preservation.BinaryKey(fileSet.Id, file.Id), node.FileIdentifier)
		assert.Equal(t, file.Size, node.Size)
		content, err := testutil.ReadDurable(t, testContext, node.FileIdentifier)
		require.Nil(t, err)
		assert.Equal(t, []string{"first file", "second file"}[i], content)
		checksum, err := fixity.Compute(strings.NewReader(content))
		require.Nil(t, err)
		assert.True(t, checksum.Agrees(node.Checksum))
	}

	current, err := testContext.PreservationObjects.Current(fileSet.Id)
	require.Nil(t, err)
	assert.Equal(t, obj.Id, current.Id)
}

func TestPreservePrunesOlderObjects(t *testing.T) {
	testContext := testutil.GetContext(t)
	resource, first := testutil.CreatePreservedResource(t, testContext)
	second, err := testContext.Preserver.Preserve(gocontext.Background(), resource)
	require.Nil(t, err)
	assert.NotEqual(t, first.Id, second.Id)
	objs, err := testContext.PreservationObjects.ForResource(resource.Id)
	require.Nil(t, err)
	require.Equal(t, 1, len(objs))
	assert.Equal(t, second.Id, objs[0].Id)
}

func TestPreserveRefusesCorruptLocalFile(t *testing.T) {
	testContext := testutil.GetContext(t)
	fileSet, obj := testutil.CreatePreservedFileSet(t, testContext, "good copy")
	testutil.WriteLocal(t, testContext, fileSet.Files[0].FileIdentifier, "bad copy")

	_, err := testContext.Preserver.Preserve(gocontext.Background(), fileSet)
	require.NotNil(t, err)
	content, err := testutil.ReadDurable(t, testContext, obj.BinaryNodes[0].FileIdentifier)
	require.Nil(t, err)
	assert.Equal(t, "good copy", content)
}

func TestPreserveHonorsPolicy(t *testing.T) {
	testContext := testutil.GetContext(t)
	resource := testutil.MakeResource()
	resource.Preserve = false
	resource, err := testContext.MetadataStore.Save(resource)
	require.Nil(t, err)
	_, err = testContext.Preserver.Preserve(gocontext.Background(), resource)
	assert.True(t, errors.Is(err, preservation.ErrNotPreservable))

	never := models.PreservationPolicyFunc(func(*models.Resource) bool { return false })
	preserver := preservation.NewPreserver(testContext.PreservationObjects,
		testContext.LocalStore, testContext.DurableStore, never)
	saved, err := testContext.MetadataStore.Save(testutil.MakeResource())
	require.Nil(t, err)
	_, err = preserver.Preserve(gocontext.Background(), saved)
	assert.True(t, errors.Is(err, preservation.ErrNotPreservable))
}

func TestDefaultPreservationPolicy(t *testing.T) {
	policy := models.NewDefaultPreservationPolicy([]string{"Template"})
	resource := testutil.MakeResource()
	assert.True(t, policy.ShouldPreserve(resource))
	resource.Type = "Template"
	assert.False(t, policy.ShouldPreserve(resource))
	resource.Type = "Work"
	resource.Preserve = false
	assert.False(t, policy.ShouldPreserve(resource))
	assert.False(t, policy.ShouldPreserve(nil))
}

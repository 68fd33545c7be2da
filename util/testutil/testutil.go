package testutil

import (
	"bytes"
	gocontext "context"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/fixity"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/network"
	"github.com/APTrust/fixity/util/logger"
	"github.com/APTrust/fixity/util/storage"
	"github.com/icrowley/fake"
	"github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"path/filepath"
	"testing"
)

// TestContext is a Context built from config/test.json, with every
// path moved under a temp dir, disk stores on both sides, and
// recording fakes for the scheduler and the alerter.
type TestContext struct {
	*context.Context
	Scheduler      *RecordingScheduler
	Alerter        *RecordingAlerter
	LocalDiskStore *network.DiskStore
	DurableDisk    *network.DiskStore
}

// GetContext returns a TestContext. Everything it creates is removed
// when the test ends.
func GetContext(t *testing.T) *TestContext {
	config, err := models.LoadConfigFile(filepath.Join("config", "test.json"))
	require.Nil(t, err, "Could not load test config")
	dir := t.TempDir()
	config.LogDirectory = filepath.Join(dir, "logs")
	config.LocalStorageDirectory = filepath.Join(dir, "storage")
	config.DatabasePath = filepath.Join(dir, "fixity.db")
	config.DurableStore.Provider = constants.StoreDisk
	config.DurableStore.Bucket = filepath.Join(dir, "durable")

	boltDB, err := storage.NewBoltDB(config.DatabasePath)
	require.Nil(t, err)
	t.Cleanup(func() { boltDB.Close() })
	localStore, err := network.NewDiskStore(config.LocalStorageDirectory)
	require.Nil(t, err)
	durableStore, err := network.NewDiskStore(config.DurableStore.Bucket)
	require.Nil(t, err)

	testContext := &TestContext{
		Context:        &context.Context{Config: config},
		Scheduler:      NewRecordingScheduler(),
		Alerter:        NewRecordingAlerter(),
		LocalDiskStore: localStore,
		DurableDisk:    durableStore,
	}
	testContext.MessageLog = logger.DiscardLogger("fixity_test")
	testContext.JsonLog = logger.DiscardJsonLogger()
	testContext.Wire(boltDB, localStore, durableStore, testContext.Scheduler, testContext.Alerter)
	return testContext
}

// MakeResource returns an unsaved, preservable descriptive resource
// with a fake title.
func MakeResource() *models.Resource {
	return &models.Resource{
		Id:       "res-" + uuid.NewV4().String(),
		Type:     "Work",
		Preserve: true,
		Attributes: map[string]string{
			"title":   fake.Title(),
			"creator": fake.FullName(),
		},
	}
}

// CreateFileSet writes one local file per item in contents, with
// roles assigned in order, and saves a FileSet that records each
// file's checksums. It returns the saved FileSet.
func CreateFileSet(t *testing.T, testContext *TestContext, contents ...string) *models.Resource {
	fileSet := &models.Resource{
		Id:       "fs-" + uuid.NewV4().String(),
		Type:     "FileSet",
		Preserve: true,
		Files:    make([]*models.FileMetadata, 0),
		Attributes: map[string]string{
			"title": fake.Title(),
		},
	}
	for i, content := range contents {
		fileId := fmt.Sprintf("file-%d", i+1)
		fileIdentifier := fmt.Sprintf("%s/%s", fileSet.Id, fileId)
		data := []byte(content)
		err := testContext.LocalStore.Put(gocontext.Background(), fileIdentifier,
			bytes.NewReader(data), int64(len(data)), constants.ContentTypeBinary)
		require.Nil(t, err)
		checksum, err := fixity.Compute(bytes.NewReader(data))
		require.Nil(t, err)
		role := constants.FileRoles[i%len(constants.FileRoles)]
		fileSet.Files = append(fileSet.Files, &models.FileMetadata{
			Id:             fileId,
			Role:           role,
			Label:          fake.Word() + ".bin",
			FileIdentifier: fileIdentifier,
			Size:           int64(len(data)),
			Checksums:      []models.ChecksumRecord{checksum},
		})
	}
	saved, err := testContext.MetadataStore.Save(fileSet)
	require.Nil(t, err)
	return saved
}

// CreatePreservedFileSet creates a FileSet and preserves it.
func CreatePreservedFileSet(t *testing.T, testContext *TestContext, contents ...string) (*models.Resource, *models.PreservationObject) {
	fileSet := CreateFileSet(t, testContext, contents...)
	obj, err := testContext.Preserver.Preserve(gocontext.Background(), fileSet)
	require.Nil(t, err)
	return fileSet, obj
}

// CreatePreservedResource saves and preserves a descriptive resource.
func CreatePreservedResource(t *testing.T, testContext *TestContext) (*models.Resource, *models.PreservationObject) {
	saved, err := testContext.MetadataStore.Save(MakeResource())
	require.Nil(t, err)
	obj, err := testContext.Preserver.Preserve(gocontext.Background(), saved)
	require.Nil(t, err)
	return saved, obj
}

// WriteLocal overwrites a file in the local store.
func WriteLocal(t *testing.T, testContext *TestContext, fileIdentifier, content string) {
	err := testContext.LocalStore.Put(gocontext.Background(), fileIdentifier,
		bytes.NewReader([]byte(content)), int64(len(content)), constants.ContentTypeBinary)
	require.Nil(t, err)
}

// WriteDurable overwrites a file in the durable store.
func WriteDurable(t *testing.T, testContext *TestContext, key, content string) {
	err := testContext.DurableStore.Put(gocontext.Background(), key,
		bytes.NewReader([]byte(content)), int64(len(content)), constants.ContentTypeBinary)
	require.Nil(t, err)
}

// ReadLocal returns the contents of a file in the local store.
func ReadLocal(t *testing.T, testContext *TestContext, fileIdentifier string) (string, error) {
	return readStore(testContext.LocalStore, fileIdentifier)
}

// ReadDurable returns the contents of a file in the durable store.
func ReadDurable(t *testing.T, testContext *TestContext, key string) (string, error) {
	return readStore(testContext.DurableStore, key)
}

func readStore(store network.BlobStore, id string) (string, error) {
	reader, err := store.Get(gocontext.Background(), id)
	if err != nil {
		return "", err
	}
	defer reader.Close()
	data, err := ioutil.ReadAll(reader)
	return string(data), err
}

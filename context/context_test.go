package context_test

import (
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/network"
	"github.com/APTrust/fixity/util/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) *models.Config {
	configFile := filepath.Join("config", "test.json")
	appConfig, err := models.LoadConfigFile(configFile)
	require.Nil(t, err)
	dir := t.TempDir()
	appConfig.LogDirectory = filepath.Join(dir, "logs")
	appConfig.LocalStorageDirectory = filepath.Join(dir, "storage")
	appConfig.DatabasePath = filepath.Join(dir, "db", "fixity.db")
	appConfig.DurableStore.Provider = constants.StoreDisk
	appConfig.DurableStore.Bucket = filepath.Join(dir, "durable")

	// In some tests we want to log to STDERR, but in this case, if it
	// happens to be turned on, it just creates useless, annoying output.
	appConfig.LogToStderr = false
	return appConfig
}

func TestNewContext(t *testing.T) {
	appConfig := testConfig(t)
	_context, err := context.NewContext(appConfig)
	require.Nil(t, err)
	require.NotNil(t, _context)
	defer _context.Close()

	expectedPathToLogFile := filepath.Join(appConfig.AbsLogDirectory(), logger.ProcessName()+".log")
	expectedPathToJsonLog := filepath.Join(appConfig.AbsLogDirectory(), logger.ProcessName()+".json")

	assert.NotNil(t, _context.Config)
	assert.NotNil(t, _context.MessageLog)
	assert.NotNil(t, _context.JsonLog)
	assert.NotNil(t, _context.BoltDB)
	assert.NotNil(t, _context.MetadataStore)
	assert.NotNil(t, _context.PreservationObjects)
	assert.NotNil(t, _context.Ledger)
	assert.NotNil(t, _context.AuditFailures)
	assert.NotNil(t, _context.Leases)
	assert.NotNil(t, _context.Policy)
	assert.NotNil(t, _context.Preserver)
	assert.IsType(t, &network.DiskStore{}, _context.LocalStore)
	assert.IsType(t, &network.DiskStore{}, _context.DurableStore)
	assert.IsType(t, &network.NSQClient{}, _context.Scheduler)
	assert.IsType(t, &network.LogAlerter{}, _context.Alerter)
	assert.Equal(t, expectedPathToLogFile, _context.PathToLogFile())
	assert.Equal(t, expectedPathToJsonLog, _context.PathToJsonLog())
	assert.Equal(t, int64(0), _context.Succeeded())
	assert.Equal(t, int64(0), _context.Failed())

	assert.NotPanics(t, func() { _context.MessageLog.Info("Test INFO log message") })
	assert.NotPanics(t, func() { _context.MessageLog.Debug("Test DEBUG log message") })
	assert.NotPanics(t, func() { _context.JsonLog.Println(`{"message": "Test JSON log message"}`) })
	assert.NotPanics(t, func() { _context.LogStats() })
}

func TestNewContextWithWebhook(t *testing.T) {
	appConfig := testConfig(t)
	appConfig.AlertWebhookURL = "http://localhost:9999/alerts"
	_context, err := context.NewContext(appConfig)
	require.Nil(t, err)
	defer _context.Close()
	assert.IsType(t, &network.WebhookAlerter{}, _context.Alerter)
}

func TestNewContextBadDurableStore(t *testing.T) {
	appConfig := testConfig(t)
	appConfig.DurableStore.Provider = "floppy-disk"
	_context, err := context.NewContext(appConfig)
	assert.NotNil(t, err)
	assert.Nil(t, _context)
}

func TestContextCounters(t *testing.T) {
	_context := &context.Context{}
	assert.Equal(t, int64(1), _context.IncrementSucceeded())
	assert.Equal(t, int64(2), _context.IncrementSucceeded())
	assert.Equal(t, int64(1), _context.IncrementFailed())
	assert.Equal(t, int64(2), _context.Succeeded())
	assert.Equal(t, int64(1), _context.Failed())
	assert.Nil(t, _context.Close())
}

package logger_test

import (
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/util/fileutil"
	"github.com/APTrust/fixity/util/logger"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"strings"
	"testing"
)

// Get a barebones config object with just enough info to
// set up logging. Log to a temp dir.
func getLoggingTestConfig(t *testing.T) *models.Config {
	logDir, err := ioutil.TempDir("", "fixity_log_test")
	require.Nil(t, err)
	t.Cleanup(func() { os.RemoveAll(logDir) })
	return &models.Config{
		LogDirectory: logDir,
		LogLevel:     logging.ERROR,
		LogToStderr:  false,
	}
}

func TestInitLogger(t *testing.T) {
	config := getLoggingTestConfig(t)
	log, logFile, err := logger.InitLogger(config)
	require.Nil(t, err)
	log.Info("Filtered out")
	log.Error("Test Message")
	require.True(t, fileutil.FileExists(logFile))
	assert.True(t, strings.HasSuffix(logFile, logger.ProcessName()+".log"))
	data, err := ioutil.ReadFile(logFile)
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(string(data), "Test Message\n"))
	assert.NotContains(t, string(data), "Filtered out")
}

func TestInitJsonLogger(t *testing.T) {
	config := getLoggingTestConfig(t)
	log, logFile, err := logger.InitJsonLogger(config)
	require.Nil(t, err)
	log.Println(`{"a":100}`)
	require.True(t, fileutil.FileExists(logFile))
	data, err := ioutil.ReadFile(logFile)
	require.Nil(t, err)
	assert.Equal(t, "{\"a\":100}\n", string(data))
}

func TestDiscardLogger(t *testing.T) {
	log := logger.DiscardLogger("logger_test")
	require.NotNil(t, log)
	log.Error("Goes nowhere")
	logger.DiscardJsonLogger().Println("Also nowhere")
}

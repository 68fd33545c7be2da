package logger

import (
	"fmt"
	"github.com/APTrust/fixity/models"
	"github.com/op/go-logging"
	"io/ioutil"
	stdlog "log"
	"os"
	"path"
	"path/filepath"
)

// ProcessName returns the name of the running executable, which
// names the log files.
func ProcessName() string {
	return path.Base(os.Args[0])
}

/*
InitLogger creates and returns a logger suitable for logging
human-readable messages, along with the path to the log file.
Messages go to <LogDirectory>/<process name>.log, and also to
stderr if config.LogToStderr is set.
*/
func InitLogger(config *models.Config) (*logging.Logger, string, error) {
	processName := ProcessName()
	filename := filepath.Join(config.AbsLogDirectory(), processName+".log")
	if err := os.MkdirAll(config.AbsLogDirectory(), 0755); err != nil {
		return nil, "", fmt.Errorf("Cannot create log directory: %v", err)
	}
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("Cannot open log file '%s': %v", filename, err)
	}

	log := logging.MustGetLogger(processName)
	format := logging.MustStringFormatter("%{time} [%{level}] %{message}")
	logging.SetFormatter(format)

	logBackend := logging.NewLogBackend(writer, "", 0)
	if config.LogToStderr {
		// Log to BOTH file and stderr
		stderrBackend := logging.NewLogBackend(os.Stderr, "", stdlog.LstdFlags|stdlog.Lshortfile)
		stderrBackend.Color = true
		logging.SetBackend(logBackend, stderrBackend)
	} else {
		logging.SetBackend(logBackend)
	}
	// SetBackend resets levels, so this has to come after it.
	logging.SetLevel(config.LogLevel, processName)

	return log, filename, nil
}

/*
InitJsonLogger creates and returns a logger for JSON work results.
The file holds one JSON object per line with no extraneous data,
so it's easy to parse.
*/
func InitJsonLogger(config *models.Config) (*stdlog.Logger, string, error) {
	filename := filepath.Join(config.AbsLogDirectory(), ProcessName()+".json")
	if err := os.MkdirAll(config.AbsLogDirectory(), 0755); err != nil {
		return nil, "", fmt.Errorf("Cannot create log directory: %v", err)
	}
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", fmt.Errorf("Cannot open log file '%s': %v", filename, err)
	}
	return stdlog.New(writer, "", 0), filename, nil
}

// DiscardLogger returns a logger that writes to dev/null.
// Suitable for use in testing.
func DiscardLogger(module string) *logging.Logger {
	log := logging.MustGetLogger(module)
	devnull := logging.NewLogBackend(ioutil.Discard, "", 0)
	logging.SetBackend(devnull)
	logging.SetLevel(logging.INFO, module)
	return log
}

// DiscardJsonLogger is the JSON counterpart of DiscardLogger.
func DiscardJsonLogger() *stdlog.Logger {
	return stdlog.New(ioutil.Discard, "", 0)
}

package models

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/util"
	"github.com/APTrust/fixity/util/fileutil"
	"github.com/op/go-logging"
	"os"
	"path/filepath"
	"time"
)

type WorkerConfig struct {
	// This describes how often the NSQ client should ping
	// the NSQ server to let it know it's still there. The
	// setting must be formatted like so:
	//
	// "800ms" for 800 milliseconds
	// "10s" for ten seconds
	// "1m" for one minute
	HeartbeatInterval string

	// The maximum number of times the worker should try to
	// process a job. If non-fatal errors cause a job to
	// fail, it will be requeued this number of times.
	// Fatal errors, such as invalid messages or repairs with
	// no preserved copy to repair from, are not retried.
	MaxAttempts uint16

	// Maximum number of jobs a worker will accept from the
	// queue at one time.
	MaxInFlight int

	// If the NSQ server does not hear from a client that a
	// job is complete in this amount of time, the server
	// considers the job to have timed out and re-queues it.
	MessageTimeout string

	// The name of the NSQ Channel the worker should read from.
	NsqChannel string

	// The name of the NSQ Topic the worker should listen to.
	NsqTopic string

	// This describes how long the NSQ client will wait for
	// a read from the NSQ server before timing out. The format
	// is the same as for HeartbeatInterval.
	ReadTimeout string

	// Number of go routines to start in the worker. For the
	// audit, this is the number of resources checked at once.
	Workers int

	// This describes how long the NSQ client will wait for
	// a write to the NSQ server to complete before timing out.
	// The format is the same as for HeartbeatInterval.
	WriteTimeout string
}

// DurableStoreConfig says where preserved copies live.
type DurableStoreConfig struct {
	// Provider is s3, minio or disk.
	Provider string

	// Region is the AWS region of the bucket. Ignored for disk.
	Region string

	// Bucket is the bucket holding preserved copies. For the disk
	// provider, this is the root directory.
	Bucket string

	// Endpoint is the host (no protocol) of an S3-compatible
	// server. Required for minio, optional for s3.
	Endpoint string

	// UseSSL applies to the minio provider.
	UseSSL bool
}

type Config struct {
	// ActiveConfig is the configuration currently
	// in use.
	ActiveConfig string

	// Configuration options for the preservation audit worker.
	AuditWorker WorkerConfig

	// Configuration options for the cloud fixity worker.
	CloudFixityWorker WorkerConfig

	// DatabasePath is the bolt DB file that holds the metadata
	// store, the fixity ledger, preservation objects, leases
	// and audit failures.
	DatabasePath string

	// DurableStore describes the store holding preserved copies.
	DurableStore DurableStoreConfig

	// ExcludedResourceTypes lists resource types that are never
	// preserved, whatever their Preserve flag says.
	ExcludedResourceTypes []string

	// LeaseSeconds is how long a repair job holds the lease on
	// its resource. It should exceed the longest repair.
	LeaseSeconds int

	// Configuration options for the local fixity worker.
	LocalFixityWorker WorkerConfig

	// LocalStorageDirectory is the root of the local blob store.
	LocalStorageDirectory string

	// LogDirectory is where we'll write our log files.
	LogDirectory string

	// LogLevel is defined in github.com/op/go-logging
	// and should be one of the following:
	// 1 - CRITICAL
	// 2 - ERROR
	// 3 - WARNING
	// 4 - NOTICE
	// 5 - INFO
	// 6 - DEBUG
	LogLevel logging.Level

	// If true, processes will log to STDERR in addition
	// to their standard log files. You really only want
	// to do this in development.
	LogToStderr bool

	// Maximum number of days allowed between local fixity
	// checks. The fixity queuer queues every FileSet whose
	// last check is older than this.
	MaxDaysSinceFixityCheck int

	// NsqdHttpAddress tells us where to find the NSQ server
	// where we can read from and write to topics and channels.
	// It's typically something like "http://localhost:4151"
	NsqdHttpAddress string

	// NsqLookupd is the full HTTP(S) address of the NSQ Lookup
	// daemon, which is where our worker processes look first to
	// discover where they can find topics and channels. This is
	// typically something like "localhost:4161"
	NsqLookupd string

	// Configuration options for the cloud repair worker.
	RepairCloudFixityWorker WorkerConfig

	// Configuration options for the local repair worker.
	RepairLocalFixityWorker WorkerConfig

	// RequeueSeconds is how long a job waits before running
	// again when another job already holds its resource.
	RequeueSeconds int

	// AlertWebhookURL, if set, receives a JSON POST for every
	// fixity alert. When empty, alerts go to the message log.
	AlertWebhookURL string
}

// This returns the configuration that the user requested,
// which is specified in the -config flag when we run a
// program from the command line
func LoadConfigFile(pathToConfigFile string) (*Config, error) {
	file, err := fileutil.LoadRelativeFile(pathToConfigFile)
	if err != nil {
		detailedError := fmt.Errorf("Error reading config file '%s': %v\n",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config := &Config{}
	err = json.Unmarshal(file, config)
	if err != nil {
		detailedError := fmt.Errorf("Error parsing JSON from config file '%s': %v",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config.ActiveConfig = pathToConfigFile
	return config, nil
}

// Ensures that the log, storage and database directories exist,
// creating them if necessary. Returns the absolute path the logging
// directory.
func (config *Config) EnsureLogDirectory() (string, error) {
	config.ExpandFilePaths()
	err := config.createDirectories()
	if err != nil {
		return "", err
	}
	return config.AbsLogDirectory(), nil
}

func (config *Config) AbsLogDirectory() string {
	absLogDir, err := filepath.Abs(config.LogDirectory)
	if err != nil {
		msg := fmt.Sprintf("Cannot get absolute path to log directory. "+
			"config.LogDirectory is set to '%s'", config.LogDirectory)
		panic(msg)
	}
	return absLogDir
}

// Expands ~ in file paths to the user's home directory.
func (config *Config) ExpandFilePaths() {
	expanded, err := fileutil.ExpandTilde(config.LogDirectory)
	if err == nil {
		config.LogDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.LocalStorageDirectory)
	if err == nil {
		config.LocalStorageDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.DatabasePath)
	if err == nil {
		config.DatabasePath = expanded
	}
	if config.DurableStore.Provider == constants.StoreDisk {
		expanded, err = fileutil.ExpandTilde(config.DurableStore.Bucket)
		if err == nil {
			config.DurableStore.Bucket = expanded
		}
	}
}

func (config *Config) createDirectories() error {
	if config.LogDirectory == "" {
		return fmt.Errorf("You must define config.LogDirectory")
	}
	if config.LocalStorageDirectory == "" {
		return fmt.Errorf("You must define config.LocalStorageDirectory")
	}
	if config.DatabasePath == "" {
		return fmt.Errorf("You must define config.DatabasePath")
	}
	dirs := []string{
		config.LogDirectory,
		config.LocalStorageDirectory,
		filepath.Dir(config.DatabasePath),
	}
	if config.DurableStore.Provider == constants.StoreDisk {
		dirs = append(dirs, config.DurableStore.Bucket)
	}
	for _, dir := range dirs {
		if !fileutil.FileExists(dir) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// EnsureDurableStoreConfig checks that the durable store settings
// are complete for the configured provider.
func (config *Config) EnsureDurableStoreConfig() error {
	store := config.DurableStore
	if !util.StringListContains(constants.StoreProviders, store.Provider) {
		return fmt.Errorf("DurableStore.Provider '%s' is not one of %v",
			store.Provider, constants.StoreProviders)
	}
	if store.Bucket == "" {
		return fmt.Errorf("DurableStore.Bucket is missing from config file")
	}
	if store.Provider == constants.StoreMinio && store.Endpoint == "" {
		return fmt.Errorf("DurableStore.Endpoint is required for minio")
	}
	if store.Provider != constants.StoreDisk {
		if os.Getenv("AWS_ACCESS_KEY_ID") == "" || os.Getenv("AWS_SECRET_ACCESS_KEY") == "" {
			return fmt.Errorf("AWS_ACCESS_KEY_ID and/or AWS_SECRET_ACCESS_KEY " +
				"not set in environment")
		}
	}
	return nil
}

// LeaseDuration returns LeaseSeconds as a Duration, defaulting
// to ten minutes.
func (config *Config) LeaseDuration() time.Duration {
	if config.LeaseSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(config.LeaseSeconds) * time.Second
}

// RequeueDelay returns RequeueSeconds as a Duration, defaulting
// to one minute.
func (config *Config) RequeueDelay() time.Duration {
	if config.RequeueSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(config.RequeueSeconds) * time.Second
}

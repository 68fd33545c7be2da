package context

import (
	"fmt"
	"github.com/APTrust/fixity/ledger"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/network"
	"github.com/APTrust/fixity/preservation"
	"github.com/APTrust/fixity/util/logger"
	"github.com/APTrust/fixity/util/storage"
	"github.com/op/go-logging"
	stdlog "log"
	"sync/atomic"
)

/*
Context holds the items common to all of the fixity workers: config,
logs, the bolt database and the stores built on it, the local and
durable blob stores, the job scheduler and the alerter. It also
keeps count of jobs that succeeded and failed.

The service process creates one Context and shares it among all of
its workers. Tests build a Context by hand, with fakes where they
need them.
*/
type Context struct {
	Config              *models.Config
	MessageLog          *logging.Logger
	JsonLog             *stdlog.Logger
	BoltDB              *storage.BoltDB
	MetadataStore       storage.MetadataStore
	PreservationObjects *storage.PreservationObjects
	Ledger              *ledger.Ledger
	AuditFailures       *storage.AuditFailures
	Leases              *storage.Leases
	LocalStore          network.BlobStore
	DurableStore        network.BlobStore
	Scheduler           network.Scheduler
	Alerter             network.Alerter
	Policy              models.PreservationPolicy
	Preserver           *preservation.Preserver
	pathToLogFile       string
	pathToJsonLog       string
	succeeded           int64
	failed              int64
}

/*
NewContext creates and returns a new Context. It creates any missing
directories named in the config, opens the logs and the bolt
database, and connects to the durable store and nsqd. Bolt locks the
database file, so only one process at a time may hold a Context for
a given config.
*/
func NewContext(config *models.Config) (*Context, error) {
	_context := &Context{Config: config}
	_, err := config.EnsureLogDirectory()
	if err != nil {
		return nil, err
	}
	_context.MessageLog, _context.pathToLogFile, err = logger.InitLogger(config)
	if err != nil {
		return nil, err
	}
	_context.JsonLog, _context.pathToJsonLog, err = logger.InitJsonLogger(config)
	if err != nil {
		return nil, err
	}
	boltDB, err := storage.NewBoltDB(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("Cannot open database %s: %v", config.DatabasePath, err)
	}
	localStore, err := network.NewDiskStore(config.LocalStorageDirectory)
	if err != nil {
		boltDB.Close()
		return nil, err
	}
	durableStore, err := network.NewDurableStore(config)
	if err != nil {
		boltDB.Close()
		return nil, fmt.Errorf("Cannot initialize durable store: %v", err)
	}
	_context.Wire(boltDB, localStore, durableStore,
		network.NewNSQClient(config.NsqdHttpAddress),
		network.NewAlerter(config, _context.MessageLog))
	return _context, nil
}

// Wire builds the bolt-backed stores, the preservation policy and the
// preserver around the collaborators passed in.
func (context *Context) Wire(boltDB *storage.BoltDB, localStore, durableStore network.BlobStore, scheduler network.Scheduler, alerter network.Alerter) {
	context.BoltDB = boltDB
	context.MetadataStore = storage.NewBoltMetadataStore(boltDB)
	context.PreservationObjects = storage.NewPreservationObjects(boltDB)
	context.Ledger = ledger.NewLedger(boltDB)
	context.AuditFailures = storage.NewAuditFailures(boltDB)
	context.Leases = storage.NewLeases(boltDB)
	context.LocalStore = localStore
	context.DurableStore = durableStore
	context.Scheduler = scheduler
	context.Alerter = alerter
	context.Policy = models.NewDefaultPreservationPolicy(context.Config.ExcludedResourceTypes)
	context.Preserver = preservation.NewPreserver(context.PreservationObjects,
		localStore, durableStore, context.Policy)
}

// Close closes the bolt database.
func (context *Context) Close() error {
	if context.BoltDB == nil {
		return nil
	}
	return context.BoltDB.Close()
}

// Returns the number of jobs that succeeded.
func (context *Context) Succeeded() int64 {
	return atomic.LoadInt64(&context.succeeded)
}

// Returns the number of jobs that failed.
func (context *Context) Failed() int64 {
	return atomic.LoadInt64(&context.failed)
}

// Increases the count of successfully processed jobs by one.
func (context *Context) IncrementSucceeded() int64 {
	return atomic.AddInt64(&context.succeeded, 1)
}

// Increases the count of unsuccessfully processed jobs by one.
func (context *Context) IncrementFailed() int64 {
	return atomic.AddInt64(&context.failed, 1)
}

// Returns the path to this process' log file
func (context *Context) PathToLogFile() string {
	return context.pathToLogFile
}

// Returns the path to this process' JSON log file
func (context *Context) PathToJsonLog() string {
	return context.pathToJsonLog
}

// Logs info about the number of jobs that have succeeded and failed.
func (context *Context) LogStats() {
	context.MessageLog.Info("**STATS** Succeeded: %d, Failed: %d",
		context.Succeeded(), context.Failed())
}

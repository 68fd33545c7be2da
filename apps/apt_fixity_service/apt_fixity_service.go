package main

import (
	"flag"
	"fmt"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/workers"
	"github.com/nsqio/go-nsq"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// apt_fixity_service runs every fixity worker in one process: local
// and cloud fixity checks, both kinds of repair, and the preservation
// audit. It also queues overdue local checks on a timer. All workers
// share one bolt database, which only one process may open.
func main() {
	pathToConfigFile, queueInterval, maxFiles := parseCommandLine()
	config, err := models.LoadConfigFile(pathToConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, err.Error())
		os.Exit(1)
	}
	_context, err := context.NewContext(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create context: %v\n", err)
		os.Exit(1)
	}
	defer _context.Close()
	_context.MessageLog.Info("Connecting to NSQLookupd at %s", _context.Config.NsqLookupd)
	_context.MessageLog.Info("NSQDHttpAddress is %s", _context.Config.NsqdHttpAddress)

	handlers := []struct {
		workerConfig *models.WorkerConfig
		handler      nsq.Handler
	}{
		{&config.LocalFixityWorker, workers.NewLocalFixityChecker(_context)},
		{&config.CloudFixityWorker, workers.NewCloudFixityVerifier(_context)},
		{&config.RepairLocalFixityWorker, workers.NewRepairLocalFixity(_context)},
		{&config.RepairCloudFixityWorker, workers.NewRepairCloudFixity(_context)},
		{&config.AuditWorker, workers.NewPreservationAudit(_context)},
	}
	consumers := make([]*nsq.Consumer, 0, len(handlers))
	for _, h := range handlers {
		consumer, err := workers.CreateNsqConsumer(_context.Config, h.workerConfig)
		if err != nil {
			_context.MessageLog.Fatalf(err.Error())
		}
		consumer.AddHandler(h.handler)
		if err := consumer.ConnectToNSQLookupd(_context.Config.NsqLookupd); err != nil {
			_context.MessageLog.Fatalf("Cannot connect to nsqlookupd: %v", err)
		}
		_context.MessageLog.Info("Listening on topic %s", h.workerConfig.NsqTopic)
		consumers = append(consumers, consumer)
	}
	_context.MessageLog.Info("apt_fixity_service started")

	queuer := workers.NewQueueFixity(_context, "", maxFiles)
	ticker := time.NewTicker(queueInterval)
	defer ticker.Stop()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-ticker.C:
			if _, err := queuer.Run(); err != nil {
				_context.MessageLog.Error("Error queuing fixity checks: %v", err)
			}
			_context.LogStats()
		case sig := <-signals:
			_context.MessageLog.Info("Received %s. Shutting down.", sig)
			for _, consumer := range consumers {
				consumer.Stop()
			}
			for _, consumer := range consumers {
				<-consumer.StopChan
			}
			_context.LogStats()
			return
		}
	}
}

func parseCommandLine() (configFile string, queueInterval time.Duration, maxFiles int) {
	flag.StringVar(&configFile, "config", "", "Path to fixity config file")
	flag.DurationVar(&queueInterval, "queue-interval", 6*time.Hour, "How often to queue overdue fixity checks")
	flag.IntVar(&maxFiles, "maxfiles", 1000, "Maximum number of FileSets to queue per interval")
	flag.Parse()
	if configFile == "" {
		printUsage()
		os.Exit(1)
	}
	return configFile, queueInterval, maxFiles
}

// Tell the user about the program.
func printUsage() {
	message := `
apt_fixity_service runs the fixity workers: local fixity checks, cloud
fixity verification, local and cloud repairs, and preservation audits.
Every queue-interval, it also queues local fixity checks for FileSets
not checked in MaxDaysSinceFixityCheck days, and local repairs for
FileSets whose last check failed.

Usage: apt_fixity_service -config=<path to config file> -queue-interval=6h -maxfiles=1000

Param -config is required.
Param -queue-interval is optional and defaults to 6h.
Param -maxfiles is optional and defaults to 1000.
`
	fmt.Println(message)
}

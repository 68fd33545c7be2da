package workers

import (
	gocontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/context"
	"github.com/APTrust/fixity/models"
	"github.com/nsqio/go-nsq"
	"github.com/satori/go.uuid"
	"time"
)

// Creates and returns an NSQ consumer for a worker process.
func CreateNsqConsumer(config *models.Config, workerConfig *models.WorkerConfig) (*nsq.Consumer, error) {
	nsqConfig := nsq.NewConfig()
	nsqConfig.Set("max_in_flight", workerConfig.MaxInFlight)
	nsqConfig.Set("heartbeat_interval", workerConfig.HeartbeatInterval)
	nsqConfig.Set("max_attempts", workerConfig.MaxAttempts)
	nsqConfig.Set("read_timeout", workerConfig.ReadTimeout)
	nsqConfig.Set("write_timeout", workerConfig.WriteTimeout)
	nsqConfig.Set("msg_timeout", workerConfig.MessageTimeout)
	return nsq.NewConsumer(workerConfig.NsqTopic, workerConfig.NsqChannel, nsqConfig)
}

// IsFatal returns true if retrying the job that returned err cannot
// help: the message is malformed, an event failed validation, a file
// that should exist is gone, or there is no good copy to repair from.
func IsFatal(err error) bool {
	return errors.Is(err, constants.ErrInvalidJobMessage) ||
		errors.Is(err, constants.ErrInvalidEventData) ||
		errors.Is(err, constants.ErrFileNotFound) ||
		errors.Is(err, constants.ErrRepairSourceUnavailable)
}

// job is one message handed from HandleMessage to a work go routine.
type job struct {
	message *nsq.Message
	key     string
	request interface{}
}

// parseFunc decodes a message body and returns the request and the
// key used to skip duplicate deliveries.
type parseFunc func(body []byte) (request interface{}, key string, err error)

// processFunc does the work. It returns a short outcome for the
// work summary.
type processFunc func(ctx gocontext.Context, request interface{}) (outcome string, err error)

// Runner is the NSQ plumbing shared by all workers. HandleMessage
// validates each message, skips keys that are already in process,
// and passes the rest to a pool of go routines. When a job is done,
// the runner logs a WorkSummary to the JSON log and finishes the
// message, or requeues it if the error was transient.
type Runner struct {
	Context        *context.Context
	Name           string
	WorkChannel    chan *job
	ItemsInProcess *models.SynchronizedMap

	// RequeueDuplicates sends a message for a key that is already in
	// process back to NSQ instead of finishing it. Set it when a
	// second message can carry information the first one does not.
	RequeueDuplicates bool

	parse   parseFunc
	process processFunc
}

func newRunner(_context *context.Context, name string, workers int, parse parseFunc, process processFunc) *Runner {
	if workers < 1 {
		workers = 1
	}
	runner := &Runner{
		Context:        _context,
		Name:           name,
		WorkChannel:    make(chan *job, workers*10),
		ItemsInProcess: models.NewSynchronizedMap(),
		parse:          parse,
		process:        process,
	}
	for i := 0; i < workers; i++ {
		go runner.work()
	}
	return runner
}

// HandleMessage is the nsq.Handler entry point.
func (runner *Runner) HandleMessage(message *nsq.Message) error {
	request, key, err := runner.parse(message.Body)
	if err != nil {
		runner.Context.MessageLog.Error("%s cannot process message %s: %v",
			runner.Name, string(message.Body), err)
		message.Finish()
		return nil
	}
	startedAt := time.Now().UTC().Format(time.RFC3339)
	if !runner.ItemsInProcess.AddIfAbsent(key, startedAt) {
		if runner.RequeueDuplicates {
			runner.Context.MessageLog.Info("Requeueing %s: already in process as of %s.",
				key, runner.ItemsInProcess.Get(key))
			message.RequeueWithoutBackoff(runner.Context.Config.RequeueDelay())
			return nil
		}
		runner.Context.MessageLog.Info("Skipping %s: already in process as of %s.",
			key, runner.ItemsInProcess.Get(key))
		message.Finish()
		return nil
	}
	// We'll ping NSQ manually when we need to.
	message.DisableAutoResponse()
	runner.WorkChannel <- &job{message: message, key: key, request: request}
	return nil
}

func (runner *Runner) work() {
	for j := range runner.WorkChannel {
		summary := models.NewWorkSummary(runner.Name, j.key)
		summary.AttemptNumber = j.message.Attempts
		summary.Start()
		outcome, err := runner.process(gocontext.Background(), j.request)
		summary.Outcome = outcome
		if err != nil {
			summary.AddError("%v", err)
			summary.ErrorIsFatal = IsFatal(err)
		}
		summary.Finish()
		runner.finish(j, summary)
	}
}

func (runner *Runner) finish(j *job, summary *models.WorkSummary) {
	logWorkSummary(runner.Context, summary)
	if !summary.HasErrors() {
		runner.Context.MessageLog.Info("%s finished %s: %s", runner.Name, j.key, summary.Outcome)
		runner.Context.IncrementSucceeded()
		j.message.Finish()
	} else if summary.ErrorIsFatal {
		runner.Context.MessageLog.Error("%s (FATAL)", summary.FirstError())
		runner.Context.IncrementFailed()
		j.message.Finish()
	} else {
		runner.Context.MessageLog.Warning("%s (transient)", summary.FirstError())
		runner.Context.IncrementFailed()
		j.message.Requeue(runner.Context.Config.RequeueDelay())
	}
	runner.ItemsInProcess.Delete(j.key)
}

// logWorkSummary writes the summary to the JSON log, one object
// per line.
func logWorkSummary(_context *context.Context, summary *models.WorkSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		_context.MessageLog.Error("Cannot serialize work summary for %s: %v", summary.Key, err)
		return
	}
	_context.JsonLog.Println(string(data))
}

// withLease runs fn while holding the lease on key. If another job
// holds the lease, withLease re-enqueues request on topic after the
// configured delay and returns false without running fn.
func withLease(_context *context.Context, key, topic string, request interface{}, fn func() error) (bool, error) {
	holder := fmt.Sprintf("%s:%s", topic, uuid.NewV4().String())
	acquired, err := _context.Leases.Acquire(key, holder, _context.Config.LeaseDuration())
	if err != nil {
		return false, err
	}
	if !acquired {
		delay := _context.Config.RequeueDelay()
		_context.MessageLog.Info("Another job holds the lease on %s. Requeueing in %s.", key, delay)
		if err := _context.Scheduler.EnqueueLater(topic, request, delay); err != nil {
			return false, fmt.Errorf("Cannot requeue job for %s: %v", key, err)
		}
		return false, nil
	}
	defer func() {
		if err := _context.Leases.Release(key, holder); err != nil {
			_context.MessageLog.Warning("Cannot release lease on %s: %v", key, err)
		}
	}()
	return true, fn()
}

// sendAlert notifies the alerter. A failed alert is logged, never
// returned.
func sendAlert(_context *context.Context, event *models.FixityEvent, location string) {
	if err := _context.Alerter.Alert(event, location); err != nil {
		_context.MessageLog.Error("Cannot send alert for event %s on %s: %v",
			event.Id, event.TrackedEntity().String(), err)
	}
}

// errStopIteration ends a MetadataStore.ForEach early without
// reporting an error.
var errStopIteration = errors.New("stop iteration")

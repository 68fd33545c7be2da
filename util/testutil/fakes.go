package testutil

import (
	"encoding/json"
	"github.com/APTrust/fixity/models"
	"sync"
	"time"
)

// ScheduledJob is one job handed to a RecordingScheduler.
type ScheduledJob struct {
	Topic string
	Body  []byte
	Delay time.Duration
}

// RecordingScheduler is a network.Scheduler that remembers what it
// was asked to enqueue. Set Err to make every call fail.
type RecordingScheduler struct {
	mutex sync.Mutex
	jobs  []ScheduledJob
	Err   error
}

func NewRecordingScheduler() *RecordingScheduler {
	return &RecordingScheduler{jobs: make([]ScheduledJob, 0)}
}

func (scheduler *RecordingScheduler) Enqueue(topic string, job interface{}) error {
	return scheduler.EnqueueLater(topic, job, 0)
}

func (scheduler *RecordingScheduler) EnqueueLater(topic string, job interface{}, delay time.Duration) error {
	if scheduler.Err != nil {
		return scheduler.Err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()
	scheduler.jobs = append(scheduler.jobs, ScheduledJob{Topic: topic, Body: body, Delay: delay})
	return nil
}

// JobsFor returns the jobs enqueued on topic, oldest first.
func (scheduler *RecordingScheduler) JobsFor(topic string) []ScheduledJob {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()
	jobs := make([]ScheduledJob, 0)
	for _, job := range scheduler.jobs {
		if job.Topic == topic {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Count returns the number of jobs enqueued on any topic.
func (scheduler *RecordingScheduler) Count() int {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()
	return len(scheduler.jobs)
}

// RecordedAlert is one alert received by a RecordingAlerter.
type RecordedAlert struct {
	Event    *models.FixityEvent
	Location string
}

// RecordingAlerter is a network.Alerter that remembers its alerts.
// Set Err to make every alert fail after it is recorded.
type RecordingAlerter struct {
	mutex  sync.Mutex
	alerts []RecordedAlert
	Err    error
}

func NewRecordingAlerter() *RecordingAlerter {
	return &RecordingAlerter{alerts: make([]RecordedAlert, 0)}
}

func (alerter *RecordingAlerter) Alert(event *models.FixityEvent, location string) error {
	alerter.mutex.Lock()
	defer alerter.mutex.Unlock()
	alerter.alerts = append(alerter.alerts, RecordedAlert{Event: event, Location: location})
	return alerter.Err
}

func (alerter *RecordingAlerter) Alerts() []RecordedAlert {
	alerter.mutex.Lock()
	defer alerter.mutex.Unlock()
	return append([]RecordedAlert(nil), alerter.alerts...)
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// WorkSummary describes one attempt to run a fixity, repair or audit
// job. Workers write it to the JSON log when the job finishes.
type WorkSummary struct {
	// Job is the name of the worker, e.g. local_fixity.
	Job string `json:"job"`

	// Key identifies what the job worked on: a FileSet id or a
	// tracked entity key.
	Key string `json:"key"`

	// AttemptNumber is the number of the attempt, starting at one.
	// This is uint16 to match the datatype of nsq.Message.Attempts.
	AttemptNumber uint16 `json:"attempt_number"`

	// Outcome is a short description of what happened, such as
	// the status of the event written to the ledger.
	Outcome string `json:"outcome"`

	// ErrorIsFatal is true if the job should not be retried.
	ErrorIsFatal bool `json:"error_is_fatal"`

	// Errors is a list of strings describing errors that occurred.
	Errors []string `json:"errors"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func NewWorkSummary(job, key string) *WorkSummary {
	return &WorkSummary{
		Job:    job,
		Key:    key,
		Errors: make([]string, 0),
	}
}

func (summary *WorkSummary) Start() {
	summary.StartedAt = time.Now().UTC()
}

func (summary *WorkSummary) Started() bool {
	return !summary.StartedAt.IsZero()
}

func (summary *WorkSummary) Finish() {
	summary.FinishedAt = time.Now().UTC()
}

func (summary *WorkSummary) Finished() bool {
	return !summary.FinishedAt.IsZero()
}

func (summary *WorkSummary) RunTime() time.Duration {
	startTime := summary.StartedAt
	if startTime.IsZero() {
		return time.Duration(0)
	}
	endTime := summary.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(startTime)
}

func (summary *WorkSummary) Succeeded() bool {
	return summary.Finished() && len(summary.Errors) == 0
}

func (summary *WorkSummary) AddError(format string, a ...interface{}) {
	summary.Errors = append(summary.Errors, fmt.Sprintf(format, a...))
}

func (summary *WorkSummary) HasErrors() bool {
	return len(summary.Errors) > 0
}

func (summary *WorkSummary) FirstError() string {
	if len(summary.Errors) > 0 {
		return summary.Errors[0]
	}
	return ""
}

func (summary *WorkSummary) AllErrorsAsString() string {
	return strings.Join(summary.Errors, "\n")
}

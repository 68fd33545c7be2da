package constants

import (
	"errors"
)

// ErrResourceNotFound means the metadata store has no record with
// the requested id.
var ErrResourceNotFound = errors.New("resource not found")

// ErrFileNotFound means a blob store has no file with the requested id.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidEventData means a fixity event failed validation and
// was not written to the ledger.
var ErrInvalidEventData = errors.New("invalid fixity event data")

// ErrRepairSourceUnavailable means no known-good preserved copy
// could be found to repair from.
var ErrRepairSourceUnavailable = errors.New("repair source unavailable")

// ErrInvalidJobMessage means an NSQ message body could not be parsed
// into a job request.
var ErrInvalidJobMessage = errors.New("invalid job message")

package fixity

import (
	"github.com/APTrust/fixity/constants"
)

// Guards are the facts about the resource that can override the
// signal reported by a remote integrity check.
type Guards struct {
	// RecordedLockToken is the lock token captured when the resource
	// was preserved. Empty for copies made before lock tokens were
	// tracked.
	RecordedLockToken string

	// CurrentLockToken is the resource's lock token right now.
	CurrentLockToken string
}

// StaleLock returns true if the preserved copy is known to be out of
// date. An empty recorded token skips the comparison; that exception
// is policy for older preserved copies.
func (guards Guards) StaleLock() bool {
	return guards.RecordedLockToken != "" && guards.RecordedLockToken != guards.CurrentLockToken
}

// Transition is the outcome of one verification: the status of the
// event to write, and whether to schedule a repair and raise an alert.
type Transition struct {
	Status         string
	ScheduleRepair bool
	Alert          bool

	// Overridden is true when a stale lock turned a SUCCESS signal
	// into a failure.
	Overridden bool
}

// NextState decides what a cloud fixity verification records.
// Param previous is the status of the current event for the tracked
// entity, or an empty string if there is none. Param signal is the
// status reported by the remote check: SUCCESS or FAILURE.
//
// A FAILURE after REPAIRING means the repair did not take. It is
// recorded and alerted but not repaired again, so a permanently
// broken entity cannot loop through repairs forever.
func NextState(previous, signal string, guards Guards) Transition {
	transition := Transition{}
	if guards.StaleLock() {
		transition.Overridden = signal == constants.StatusSuccess
		signal = constants.StatusFailure
	}
	if signal == constants.StatusSuccess {
		transition.Status = constants.StatusSuccess
		return transition
	}
	transition.Alert = true
	if previous == constants.StatusRepairing {
		transition.Status = constants.StatusFailure
		return transition
	}
	transition.Status = constants.StatusRepairing
	transition.ScheduleRepair = true
	return transition
}

package testutil

import (
	"github.com/nsqio/go-nsq"
	"sync"
	"time"
)

// NSQTestDelegate is a struct used in unit tests to capture
// NSQ messages and actions. The interface we're mocking is
// the MessageDelegate interface defined here:
// https://github.com/nsqio/go-nsq/blob/master/delegates.go#L35
//
// Workers respond to messages from their own go routines, so
// reads go through the accessor methods.
type NSQTestDelegate struct {
	mutex     sync.Mutex
	message   *nsq.Message
	delay     time.Duration
	backoff   bool
	operation string
}

// NewNSQTestDelegate returns a pointer to a new NSQTestDelegate.
func NewNSQTestDelegate() *NSQTestDelegate {
	return &NSQTestDelegate{}
}

// OnFinish receives the Finish() call from an NSQ message.
func (delegate *NSQTestDelegate) OnFinish(message *nsq.Message) {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	delegate.message = message
	delegate.operation = "finish"
}

// OnRequeue receives the Requeue() call from an NSQ message.
func (delegate *NSQTestDelegate) OnRequeue(message *nsq.Message, delay time.Duration, backoff bool) {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	delegate.message = message
	delegate.delay = delay
	delegate.backoff = backoff
	delegate.operation = "requeue"
}

// OnTouch receives the Touch() call from an NSQ message.
func (delegate *NSQTestDelegate) OnTouch(message *nsq.Message) {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	delegate.message = message
	delegate.operation = "touch"
}

// Operation returns the last operation: finish, requeue or touch.
func (delegate *NSQTestDelegate) Operation() string {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	return delegate.operation
}

// Delay returns the delay passed to the last Requeue.
func (delegate *NSQTestDelegate) Delay() time.Duration {
	delegate.mutex.Lock()
	defer delegate.mutex.Unlock()
	return delegate.delay
}

// MakeNsqMessage returns an NSQ message carrying body, wired to a
// new NSQTestDelegate.
func MakeNsqMessage(body []byte) (*nsq.Message, *NSQTestDelegate) {
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	message := nsq.NewMessage(id, body)
	message.Attempts = 1
	delegate := NewNSQTestDelegate()
	message.Delegate = delegate
	return message, delegate
}

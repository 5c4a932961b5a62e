package stub

import (
	"context"
	"sync"

	"safeguard-bot/internal/notify"
)

// Sender records messages instead of delivering them.
type Sender struct {
	mu       sync.Mutex
	messages []notify.Message
	Err      error // returned by Send when set

	failures int // remaining sends that fail with failErr
	failErr  error
	attempts int
}

// NewSender creates a recording sender.
func NewSender() *Sender {
	return &Sender{}
}

// Send implements notify.Sender.
func (s *Sender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return s.failErr
	}
	if s.Err != nil {
		return s.Err
	}
	s.messages = append(s.messages, msg)
	return nil
}

// SetErr makes subsequent sends fail with err.
func (s *Sender) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// Messages returns a copy of the delivered messages.
func (s *Sender) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.messages...)
}

// FailNext makes the next n sends fail with err.
func (s *Sender) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures, s.failErr = n, err
}

// Attempts returns the number of Send calls, failed ones included.
func (s *Sender) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

package adapter

import (
	"sync"
	"time"
)

// Backoff is a bounded exponential delay policy.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultBackoff returns the policy used by both adapters.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: 1 * time.Second,
		Max:     2 * time.Minute,
		Factor:  2.0,
	}
}

// Delay returns the wait after the given number of consecutive failures.
// Zero failures means no wait.
func (b Backoff) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	b = b.withDefaults()

	delay := float64(b.Initial)
	for i := 1; i < failures; i++ {
		delay *= b.Factor
		if delay >= float64(b.Max) {
			return b.Max
		}
	}
	if time.Duration(delay) > b.Max {
		return b.Max
	}
	return time.Duration(delay)
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = def.Initial
	}
	if b.Max <= 0 {
		b.Max = def.Max
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Factor <= 1 {
		b.Factor = def.Factor
	}
	return b
}

// backoffSet tracks independent backoff windows per key.
type backoffSet struct {
	policy Backoff
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]backoffEntry
}

type backoffEntry struct {
	failures int
	until    time.Time
}

func newBackoffSet(policy Backoff) *backoffSet {
	return &backoffSet{
		policy:  policy,
		now:     time.Now,
		entries: make(map[string]backoffEntry),
	}
}

// Ready reports whether key is outside its backoff window.
func (s *backoffSet) Ready(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return !ok || !s.now().Before(e.until)
}

// Fail records a failure for key and returns the new wait.
func (s *backoffSet) Fail(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key]
	e.failures++
	delay := s.policy.Delay(e.failures)
	e.until = s.now().Add(delay)
	s.entries[key] = e
	return delay
}

// Reset clears the failure history of key.
func (s *backoffSet) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

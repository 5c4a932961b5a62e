// Package classify turns raw chain events into buy/sell swap events for a
// tracked token.
package classify

import (
	"errors"
	"fmt"

	"safeguard-bot/internal/domain"
)

var (
	// ErrNotSwap means the event does not move the tracked token.
	ErrNotSwap = errors.New("not a swap")
	// ErrAmbiguous means both legs of the tracked token moved in one swap.
	ErrAmbiguous = errors.New("ambiguous swap: tracked token both in and out")
	// ErrTokenNotInPool means the pool does not hold the tracked token.
	ErrTokenNotInPool = errors.New("tracked token not in pool")
	// ErrNoClassifier means no classifier is registered for the event family.
	ErrNoClassifier = errors.New("no classifier for event family")
)

// RawEvent is a chain-specific event awaiting classification.
type RawEvent interface {
	Family() domain.Family
}

// Classifier classifies raw events of one chain family.
type Classifier interface {
	Family() domain.Family
	Classify(raw RawEvent, token *domain.TrackedToken) (*domain.SwapEvent, error)
}

// Registry dispatches raw events to the classifier of their family.
type Registry struct {
	classifiers map[domain.Family]Classifier
}

// NewRegistry creates a registry. Later classifiers replace earlier ones
// for the same family.
func NewRegistry(classifiers ...Classifier) *Registry {
	r := &Registry{classifiers: make(map[domain.Family]Classifier, len(classifiers))}
	for _, c := range classifiers {
		r.classifiers[c.Family()] = c
	}
	return r
}

// Classify selects a classifier by raw.Family() and runs it.
func (r *Registry) Classify(raw RawEvent, token *domain.TrackedToken) (*domain.SwapEvent, error) {
	if raw == nil {
		return nil, ErrNotSwap
	}
	c, ok := r.classifiers[raw.Family()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoClassifier, raw.Family())
	}
	return c.Classify(raw, token)
}

// IsDiscard reports whether err marks an event to drop silently rather than
// an operational failure.
func IsDiscard(err error) bool {
	return errors.Is(err, ErrNotSwap) || errors.Is(err, ErrAmbiguous) || errors.Is(err, ErrTokenNotInPool)
}

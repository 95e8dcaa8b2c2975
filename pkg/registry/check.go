package registry

import (
	"context"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// IdentifierStatus is what is currently known about an identifier's uniqueness.
type IdentifierStatus int

const (
	IdentifierUnknown IdentifierStatus = iota
	IdentifierChecking
	IdentifierUnique
	IdentifierDuplicate
)

func (s IdentifierStatus) String() string {
	switch s {
	case IdentifierChecking:
		return "checking"
	case IdentifierUnique:
		return "unique"
	case IdentifierDuplicate:
		return "duplicate"
	}
	return "unknown"
}

func identifierKey(identifier string) string {
	return strings.ToLower(domain.StripNamespace(identifier))
}

func (r *Registry) isUniqueLocked(identifier, excludingLocalID string) bool {
	key := identifierKey(identifier)
	for local, q := range r.questions {
		if local == excludingLocalID {
			continue
		}
		if identifierKey(q.Identifier) == key {
			return false
		}
	}
	return true
}

// IsLocallyUnique checks the identifier against the registered questions only.
func (r *Registry) IsLocallyUnique(identifier, excludingLocalID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isUniqueLocked(identifier, excludingLocalID)
}

// IdentifierStatus returns the last known uniqueness of an identifier.
func (r *Registry) IdentifierStatus(identifier string) IdentifierStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statuses[identifierKey(identifier)]
}

// Subscribe registers fn to be called whenever an identifier status settles.
func (r *Registry) Subscribe(fn func(identifier string, status IdentifierStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// CheckIdentifierUnique decides whether identifier is free for the question
// excludingLocalID (empty for a question that does not exist yet).
//
// Local questions are consulted first. When they do not collide, the check
// waits for the debounce period and then asks the backend. A newer check for
// the same question makes the older one return domain.ErrCheckSuperseded.
// Concurrent identical backend calls are collapsed into one.
func (r *Registry) CheckIdentifierUnique(ctx context.Context, identifier, excludingLocalID string) (bool, error) {
	key := identifierKey(identifier)

	r.mu.Lock()
	if !r.isUniqueLocked(identifier, excludingLocalID) {
		notify := r.setStatusLocked(key, IdentifierDuplicate)
		r.mu.Unlock()
		notify()
		return false, nil
	}
	if r.checker == nil {
		notify := r.setStatusLocked(key, IdentifierUnique)
		r.mu.Unlock()
		notify()
		return true, nil
	}

	slot := excludingLocalID
	if prev, ok := r.checking[slot]; ok && prev != key && r.statuses[prev] == IdentifierChecking {
		r.statuses[prev] = IdentifierUnknown
	}
	r.generation[slot]++
	gen := r.generation[slot]
	r.checking[slot] = key
	r.statuses[key] = IdentifierChecking
	excludingID := r.questions[excludingLocalID].ID
	r.mu.Unlock()

	if r.debounce > 0 {
		timer := time.NewTimer(r.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.abandon(slot, gen, key)
			return false, ctx.Err()
		case <-timer.C:
		}
	}
	if r.superseded(slot, gen) {
		return false, domain.ErrCheckSuperseded
	}

	flightKey := r.groupID + "|" + key + "|" + excludingID
	v, err, shared := r.flight.Do(flightKey, func() (any, error) {
		return r.checker.CheckIdentifierUnique(ctx, domain.Qualify(r.namespace, identifier), r.groupID, excludingID)
	})
	if err != nil {
		r.abandon(slot, gen, key)
		r.logger.Warn("identifier check failed", "identifier", identifier, "error", err)
		return false, &domain.PersistenceError{Op: "check identifier", QuestionKey: identifier, Err: err}
	}
	if shared {
		r.logger.Debug("identifier check shared", "identifier", identifier)
	}

	r.mu.Lock()
	if r.generation[slot] != gen {
		r.mu.Unlock()
		return false, domain.ErrCheckSuperseded
	}
	delete(r.checking, slot)
	unique := v.(bool) && r.isUniqueLocked(identifier, excludingLocalID)
	status := IdentifierDuplicate
	if unique {
		status = IdentifierUnique
	}
	notify := r.setStatusLocked(key, status)
	r.mu.Unlock()
	notify()

	return unique, nil
}

func (r *Registry) superseded(slot string, gen uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation[slot] != gen
}

func (r *Registry) abandon(slot string, gen uint64, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation[slot] != gen {
		return
	}
	delete(r.checking, slot)
	if r.statuses[key] == IdentifierChecking {
		r.statuses[key] = IdentifierUnknown
	}
}

// setStatusLocked records a settled status and returns the notification to
// run once the lock is released.
func (r *Registry) setStatusLocked(key string, status IdentifierStatus) func() {
	r.statuses[key] = status
	listeners := make([]func(string, IdentifierStatus), len(r.listeners))
	copy(listeners, r.listeners)
	return func() {
		for _, fn := range listeners {
			fn(key, status)
		}
	}
}

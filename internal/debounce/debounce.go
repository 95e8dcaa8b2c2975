// Package debounce coalesces bursts of calls into a single delayed call per key.
package debounce

import (
	"sync"
	"time"
)

// Keyed runs fn once per key after the key has been quiet for delay.
// Each Trigger restarts the key's timer.
type Keyed struct {
	mu     sync.Mutex
	delay  time.Duration
	fn     func(key string)
	timers map[string]*time.Timer
}

// NewKeyed creates a keyed debouncer.
func NewKeyed(delay time.Duration, fn func(key string)) *Keyed {
	return &Keyed{
		delay:  delay,
		fn:     fn,
		timers: make(map[string]*time.Timer),
	}
}

// Trigger schedules fn(key), replacing any pending call for key.
func (k *Keyed) Trigger(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if t, ok := k.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(k.delay, func() {
		k.mu.Lock()
		// A newer Trigger or a Flush already owns the key.
		if k.timers[key] != t {
			k.mu.Unlock()
			return
		}
		delete(k.timers, key)
		k.mu.Unlock()
		k.fn(key)
	})
	k.timers[key] = t
}

// Cancel drops the pending call for key. It reports whether one was pending.
func (k *Keyed) Cancel(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	t, ok := k.timers[key]
	if ok {
		t.Stop()
		delete(k.timers, key)
	}
	return ok
}

// Flush runs the pending call for key immediately, on the caller's goroutine.
func (k *Keyed) Flush(key string) bool {
	if !k.Cancel(key) {
		return false
	}
	k.fn(key)
	return true
}

// FlushAll runs every pending call immediately, in no particular order.
func (k *Keyed) FlushAll() int {
	k.mu.Lock()
	keys := make([]string, 0, len(k.timers))
	for key, t := range k.timers {
		t.Stop()
		keys = append(keys, key)
	}
	k.timers = make(map[string]*time.Timer)
	k.mu.Unlock()

	for _, key := range keys {
		k.fn(key)
	}
	return len(keys)
}

// Pending returns the number of keys waiting to fire.
func (k *Keyed) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.timers)
}

// Stop cancels every pending call.
func (k *Keyed) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, t := range k.timers {
		t.Stop()
		delete(k.timers, key)
	}
}

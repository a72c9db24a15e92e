package fetch

import (
	"errors"
	"sync"
	"time"
)

// ErrOriginUnavailable reports an origin cut off after repeated download
// failures. Installs from other origins are unaffected.
var ErrOriginUnavailable = errors.New("origin temporarily unavailable")

const (
	// tripAfter consecutive failures cut an origin off.
	tripAfter = 5
	// cooldown is how long a cut-off origin waits before a probe.
	cooldown = 30 * time.Second
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateProbing
)

// breaker guards one origin host. Repeated transport failures open it;
// after the cooldown a single probe request decides whether it closes
// again. Content violations (oversized, binary, wrong charset) never
// count against the origin.
type breaker struct {
	mu       sync.Mutex
	state    breakerState
	failures int       // consecutive, while closed
	until    time.Time // open holds until this instant
}

// allow reports whether a download may proceed right now.
func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if now.Before(b.until) {
			return false
		}
		b.state = stateProbing
		return true
	default:
		// A probe is already in flight.
		return false
	}
}

// record feeds back the outcome of an allowed download.
func (b *breaker) record(ok bool, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ok {
		b.state = stateClosed
		b.failures = 0
		return
	}

	if b.state == stateProbing {
		b.state = stateOpen
		b.until = now.Add(cooldown)
		return
	}

	b.failures++
	if b.failures >= tripAfter {
		b.state = stateOpen
		b.until = now.Add(cooldown)
	}
}

// breakerSet tracks one breaker per origin host.
type breakerSet struct {
	mu     sync.Mutex
	byHost map[string]*breaker
}

func newBreakerSet() *breakerSet {
	return &breakerSet{byHost: make(map[string]*breaker)}
}

func (s *breakerSet) get(host string) *breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.byHost[host]
	if !ok {
		b = &breaker{}
		s.byHost[host] = b
	}
	return b
}

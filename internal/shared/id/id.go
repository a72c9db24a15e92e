// Package id generates lexicographically sortable request identifiers.
//
// Request IDs are prefixed ULIDs ("req_01J..."): k-sortable, so log
// queries over a time window are prefix scans, and cheap enough to mint
// once per request. Instance IDs (uuid) and sandbox tokens (crypto/rand
// hex) are minted elsewhere and follow their own formats.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestPrefix marks request identifiers in logs and headers.
const RequestPrefix = "req"

// RequestID identifies one HTTP request through logs and traces.
type RequestID string

func (id RequestID) String() string { return string(id) }

// Timestamp extracts the mint time embedded in the identifier.
func (id RequestID) Timestamp() (time.Time, error) {
	raw, ok := strings.CutPrefix(string(id), RequestPrefix+"_")
	if !ok {
		return time.Time{}, fmt.Errorf("request id %q lacks the %s_ prefix", id, RequestPrefix)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid request id: %w", err)
	}
	return ulid.Time(parsed.Time()), nil
}

// Generator mints ULIDs from a locked entropy source.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator backed by crypto/rand.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator reading entropy from r. Tests can pass
// a deterministic reader.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{entropy: r}
}

// Generate mints one ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// NewRequestID mints a prefixed request identifier.
func NewRequestID() RequestID {
	return RequestID(fmt.Sprintf("%s_%s", RequestPrefix, Default().Generate()))
}

// ParseRequest validates an externally supplied request identifier.
func ParseRequest(s string) (RequestID, error) {
	raw, ok := strings.CutPrefix(s, RequestPrefix+"_")
	if !ok {
		return "", fmt.Errorf("request id %q lacks the %s_ prefix", s, RequestPrefix)
	}
	if _, err := ulid.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid request id: %w", err)
	}
	return RequestID(s), nil
}

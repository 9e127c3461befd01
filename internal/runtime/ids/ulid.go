// Package ids creates the ULIDs used for request and event identifiers.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/drblury/commitlog/internal/runtime/clock"
)

// Generator creates ULIDs stamped with the time of its clock. IDs from one
// generator are strictly increasing, also while the clock stands still.
type Generator struct {
	mu      sync.Mutex
	clock   clock.Clock
	entropy *ulid.MonotonicEntropy
}

// NewGenerator returns a generator reading time from c. A nil c uses the
// real clock.
func NewGenerator(c clock.Clock) *Generator {
	if c == nil {
		c = clock.Real()
	}
	return &Generator{clock: c, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns the next ULID as a 26-character string.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.clock.Now()), g.entropy).String()
}

var defaultGenerator = NewGenerator(nil)

// CreateULID returns a time-sortable ULID from the wall clock.
func CreateULID() string {
	return defaultGenerator.New()
}

// Time returns the millisecond timestamp encoded in id.
func Time(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}

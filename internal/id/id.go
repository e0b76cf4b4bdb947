// Package id stamps batches and risk events with ULIDs, so ids sort by creation time.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// At returns an id stamped with t. Ids stamped within the same millisecond still increase.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Batch returns the id for a batch submitted now.
func Batch() string {
	return At(time.Now())
}

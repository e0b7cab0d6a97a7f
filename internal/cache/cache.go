// Package cache provides the market-data fallback cache: a shared map of
// operation keys to the last good payload, tagged with where it came from and
// when. Staleness policy lives in the consumer; stores only hold entries.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wasiiff/blokk-lens/internal/domain"
)

// Entry is one cached payload. Value is the JSON encoding of the original
// result so a single store can hold every operation's shape.
type Entry struct {
	Value    json.RawMessage   `json:"value"`
	Source   domain.DataSource `json:"source"`
	StoredAt time.Time         `json:"stored_at"`
}

// Age reports how old the entry is at the given instant.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Store is the injected cache abstraction. Get returns ok=false on a miss;
// concurrent writers on one key resolve last-write-wins.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}

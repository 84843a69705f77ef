package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"motorgestor-api/internal/matching"
)

// DefaultTTL is how long a quote stays valid after it is stored
const DefaultTTL = 10 * time.Minute

// LookupKey identifies a cached quote by normalized make, model and year
type LookupKey struct {
	Marca  string
	Modelo string
	Ano    int
}

// NewLookupKey normalizes make and model so equivalent inputs share a key
func NewLookupKey(marca, modelo string, ano int) LookupKey {
	return LookupKey{
		Marca:  matching.Normalize(marca),
		Modelo: matching.Normalize(modelo),
		Ano:    ano,
	}
}

func (k LookupKey) String() string {
	return fmt.Sprintf("%s|%s|%d", k.Marca, k.Modelo, k.Ano)
}

// Entry is a cached quote. Entries are replaced whole, never updated in place.
type Entry struct {
	ExpiresAt      time.Time       `json:"expires_at"`
	Value          decimal.Decimal `json:"value"`
	ReferenceMonth string          `json:"reference_month"`
	ReferenceCode  string          `json:"reference_code,omitempty"`
}

// ValidAt reports whether the entry is still usable at now
func (e Entry) ValidAt(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Store is the contract the lookup service uses for memoization
type Store interface {
	Get(ctx context.Context, key LookupKey) (Entry, bool, error)
	Put(ctx context.Context, key LookupKey, entry Entry) error
}

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Package retriever allocates the short numeric ids the vector store uses to
// address a submission's chunks.
package retriever

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"negotiate/api/internal/logger"
	"negotiate/api/internal/util"
)

const (
	minLength = 1
	maxLength = 5
	digits    = "0123456789"

	DefaultMaxAttempts = 50
)

// ErrExhausted is returned when every candidate within the attempt budget was
// already taken.
var ErrExhausted = errors.New("retriever id space exhausted")

type Lookup interface {
	RetrieverIDExists(ctx context.Context, retrieverID string) (bool, error)
}

type Allocator struct {
	lookup      Lookup
	maxAttempts int
	generate    func() string
	log         *logger.Logger
}

func NewAllocator(lookup Lookup, maxAttempts int, log *logger.Logger) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Allocator{lookup: lookup, maxAttempts: maxAttempts, generate: Generate, log: log}
}

// Generate returns a candidate matching [0-9]{1,5}.
func Generate() string {
	n, err := rand.Int(rand.Reader, big.NewInt(maxLength-minLength+1))
	if err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return util.RandomString(digits, minLength+int(n.Int64()))
}

// Allocate draws candidates until one is not in use. A failed lookup is
// treated as "not in use"; the unique index on retriever_id is the backstop.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := a.generate()
		taken, err := a.lookup.RetrieverIDExists(ctx, candidate)
		if err != nil {
			a.log.Warn("retriever id lookup failed, accepting candidate",
				"retriever_id", candidate, "attempt", attempt, "error", err)
			return candidate, nil
		}
		if !taken {
			return candidate, nil
		}
		a.log.Debug("retriever id collision", "retriever_id", candidate, "attempt", attempt)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, a.maxAttempts)
}

package domain

import (
	"errors"
	"fmt"
)

// maxIdempotencyKeyLen is an arbitrary upper bound to reject garbage input.
const maxIdempotencyKeyLen = 50

var ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")

// IdempotencyKey is a client-supplied token scoping "same logical command"
// across retries. Construct only through ParseIdempotencyKey.
type IdempotencyKey string

// ParseIdempotencyKey validates the raw header value: non-empty and shorter
// than 50 characters.
func ParseIdempotencyKey(raw string) (IdempotencyKey, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: key cannot be empty", ErrInvalidIdempotencyKey)
	}
	if len(raw) >= maxIdempotencyKeyLen {
		return "", fmt.Errorf("%w: key must be shorter than %d characters", ErrInvalidIdempotencyKey, maxIdempotencyKeyLen)
	}
	return IdempotencyKey(raw), nil
}

func (k IdempotencyKey) String() string { return string(k) }

// HeaderPair is one response header as persisted in the command store.
// Value is kept as raw bytes so any header can be replayed verbatim.
type HeaderPair struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// StoredResponse is the byte-oriented representation of an HTTP response
// saved against an idempotency key: status code, ordered header pairs and
// body. Replays must reconstruct the original response byte-for-byte.
type StoredResponse struct {
	StatusCode int
	Headers    []HeaderPair
	Body       []byte
}

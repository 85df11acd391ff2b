package nuscenes

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TokenSource hands out opaque record identifiers.
type TokenSource interface {
	NewToken() string
}

// UUIDTokens issues random UUIDv4 tokens.
type UUIDTokens struct{}

func (UUIDTokens) NewToken() string { return uuid.New().String() }

// SequenceTokens issues "<prefix>-000001", "<prefix>-000002", ... for
// reproducible output in tests and golden comparisons.
type SequenceTokens struct {
	Prefix string

	mu sync.Mutex
	n  int
}

func (s *SequenceTokens) NewToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%06d", s.Prefix, s.n)
}

package whiskypay

import (
	"strings"
	"sync"
)

// SignatureSet records signatures that have already been verified for one
// checkout session. It only short-circuits redundant verification calls; the
// backend remains the source of truth. The set does not survive process
// restarts and must be treated as a best-effort cache, not a lock.
type SignatureSet struct {
	mu   sync.Mutex
	sigs map[string]struct{}
}

// NewSignatureSet creates an empty set.
func NewSignatureSet() *SignatureSet {
	return &SignatureSet{sigs: make(map[string]struct{})}
}

// Add records a verified signature. Surrounding whitespace is stripped.
func (s *SignatureSet) Add(signature string) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sigs == nil {
		s.sigs = make(map[string]struct{})
	}
	s.sigs[signature] = struct{}{}
}

// Contains reports whether the signature was previously verified.
func (s *SignatureSet) Contains(signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sigs[strings.TrimSpace(signature)]
	return ok
}

// Len returns the number of recorded signatures.
func (s *SignatureSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sigs)
}

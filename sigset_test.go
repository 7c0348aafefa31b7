package whiskypay

import (
	"sync"
	"testing"
)

func TestSignatureSet(t *testing.T) {
	s := NewSignatureSet()

	if s.Contains("sig1") {
		t.Error("empty set must not contain anything")
	}

	s.Add("sig1")
	if !s.Contains("sig1") {
		t.Error("expected sig1 after Add")
	}
	if s.Len() != 1 {
		t.Errorf("expected length 1, got %d", s.Len())
	}

	s.Add("sig1")
	if s.Len() != 1 {
		t.Errorf("duplicate add must not grow the set, got %d", s.Len())
	}
}

func TestSignatureSet_TrimsWhitespace(t *testing.T) {
	s := NewSignatureSet()
	s.Add("  sig1\n")
	if !s.Contains("sig1") || !s.Contains(" sig1 ") {
		t.Error("expected whitespace-insensitive membership")
	}
}

func TestSignatureSet_IgnoresEmpty(t *testing.T) {
	s := NewSignatureSet()
	s.Add("")
	s.Add("   ")
	if s.Len() != 0 {
		t.Errorf("blank signatures must not be recorded, got %d", s.Len())
	}
}

func TestSignatureSet_ConcurrentAccess(t *testing.T) {
	s := NewSignatureSet()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add("sig1")
			s.Contains("sig1")
		}()
	}
	wg.Wait()
	if s.Len() != 1 {
		t.Errorf("expected 1 signature, got %d", s.Len())
	}
}

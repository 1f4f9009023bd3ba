package security

import "testing"

func TestCanonicalHash(t *testing.T) {
	a := CanonicalHash("template text")
	b := CanonicalHash("template text")
	c := CanonicalHash("template text ")

	if a != b {
		t.Error("hash is not stable for identical input")
	}
	if a == c {
		t.Error("whitespace change did not alter the hash")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestNonceSource(t *testing.T) {
	src := NewNonceSource()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n, err := src.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if len(n) != 32 {
			t.Fatalf("expected 32 hex chars, got %d", len(n))
		}
		if seen[n] {
			t.Fatal("nonce repeated")
		}
		seen[n] = true
	}
}

package csp

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var nonceFormat = regexp.MustCompile(`^[A-Za-z0-9]{16}$`)

func TestGenerateNonce_FormatAndUniqueness(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)

	for i := 0; i < n; i++ {
		nonce := GenerateNonce()
		if !nonceFormat.MatchString(nonce) {
			t.Fatalf("nonce %q does not match %s", nonce, nonceFormat)
		}
		if _, dup := seen[nonce]; dup {
			t.Fatalf("duplicate nonce %q after %d draws", nonce, i)
		}
		seen[nonce] = struct{}{}
	}
}

func TestNonceContext(t *testing.T) {
	assert.Empty(t, NonceFromContext(context.Background()))

	ctx := WithNonce(context.Background(), "abcDEF0123456789")
	assert.Equal(t, "abcDEF0123456789", NonceFromContext(ctx))
}

func BenchmarkGenerateNonce(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateNonce()
	}
}

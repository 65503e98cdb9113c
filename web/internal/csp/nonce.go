// Package csp builds Content-Security-Policy header values and the per-request
// nonces embedded in them.
package csp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// NonceLength is the number of characters in a generated nonce.
const NonceLength = 16

const nonceBytes = 16

var nonceStripper = strings.NewReplacer("+", "", "/", "", "=", "")

// GenerateNonce returns a fresh 16-character alphanumeric token drawn from
// crypto/rand. Characters outside [A-Za-z0-9] are stripped from the base64
// encoding and further draws are appended until the token is long enough.
func GenerateNonce() string {
	var sb strings.Builder
	for sb.Len() < NonceLength {
		buf := make([]byte, nonceBytes)
		// crypto/rand.Read never returns an error on supported platforms.
		_, _ = rand.Read(buf)
		sb.WriteString(nonceStripper.Replace(base64.StdEncoding.EncodeToString(buf)))
	}
	return sb.String()[:NonceLength]
}

type nonceKey struct{}

// WithNonce stores the request nonce in ctx for downstream renderers.
func WithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

// NonceFromContext returns the nonce stored by WithNonce, or "".
func NonceFromContext(ctx context.Context) string {
	if n, ok := ctx.Value(nonceKey{}).(string); ok {
		return n
	}
	return ""
}

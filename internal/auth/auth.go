// Package auth defines the token-validation capability consumed by the
// connection layer. The provider is constructed once at startup and injected;
// nothing rebinds it at runtime.
package auth

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// Result reports the outcome of validating a client token.
type Result struct {
	OK     bool
	UserID string
	Reason string
}

// Provider validates client-presented tokens. Implementations may reach out
// to an external identity service, so validation takes a context.
type Provider interface {
	Validate(ctx context.Context, token string) Result
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, token string) Result

func (f ProviderFunc) Validate(ctx context.Context, token string) Result {
	if f == nil {
		return Result{Reason: "no auth provider"}
	}
	return f(ctx, token)
}

// StaticProvider accepts any non-empty token and derives a stable user id
// from it. It is the prototype default; real deployments supply their own
// Provider.
type StaticProvider struct{}

// NewStaticProvider constructs the default provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Validate satisfies Provider.
func (p *StaticProvider) Validate(_ context.Context, token string) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Reason: "empty token"}
	}
	digest := fnv.New64a()
	digest.Write([]byte(token))
	return Result{OK: true, UserID: fmt.Sprintf("user-%x", digest.Sum64())}
}

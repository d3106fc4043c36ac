package auth

import (
	"context"
	"testing"
)

func TestStaticProviderAcceptsNonEmptyTokens(t *testing.T) {
	provider := NewStaticProvider()
	ctx := context.Background()

	first := provider.Validate(ctx, "alpha-token")
	if !first.OK || first.UserID == "" {
		t.Fatalf("Validate = %+v, want ok with a user id", first)
	}

	// The same token always maps to the same user.
	second := provider.Validate(ctx, "alpha-token")
	if second.UserID != first.UserID {
		t.Fatalf("user id changed between validations: %s vs %s", first.UserID, second.UserID)
	}

	other := provider.Validate(ctx, "beta-token")
	if other.UserID == first.UserID {
		t.Fatal("distinct tokens mapped to the same user")
	}
}

func TestStaticProviderRejectsEmptyToken(t *testing.T) {
	provider := NewStaticProvider()
	for _, token := range []string{"", "   "} {
		result := provider.Validate(context.Background(), token)
		if result.OK {
			t.Fatalf("Validate(%q) accepted an empty token", token)
		}
		if result.Reason == "" {
			t.Fatalf("Validate(%q) returned no refusal reason", token)
		}
	}
}

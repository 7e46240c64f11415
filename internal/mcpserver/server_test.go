package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gunba/taxiv/internal/resilience"
	"github.com/gunba/taxiv/pkg/legis"
)

func TestUserError_Vocabulary(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want string
	}{
		{"not found", fmt.Errorf("detail: %w", legis.ErrNotFound), "not found"},
		{"deadline", legis.ErrDeadlineExceeded, "deadline exceeded"},
		{"ctx deadline", context.DeadlineExceeded, "deadline exceeded"},
		{"store down", legis.ErrStoreUnavailable, "temporary error, please retry"},
		{"breaker open", resilience.ErrOpen, "temporary error, please retry"},
		{"invariant", legis.ErrInvariantViolation, "temporary error, please retry"},
		{"unknown", errors.New("weird"), "temporary error, please retry"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := userError(tc.in); got.Error() != tc.want {
				t.Errorf("userError(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestUserError_InvalidQueryPassesThrough(t *testing.T) {
	in := fmt.Errorf("search: page size 200 exceeds 100: %w", legis.ErrInvalidQuery)
	if got := userError(in); !errors.Is(got, legis.ErrInvalidQuery) {
		t.Errorf("userError() = %v, want the invalid-query error preserved", got)
	}
}

package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{ErrInvalidToken, ReasonInvalidToken},
		{ErrTokenRevoked, ReasonTokenRevoked},
		{ErrReuseDetected, ReasonReuseDetected},
		{ErrTokenExpired, ReasonTokenExpired},
		{ErrMetadataMismatch, ReasonMetadataMismatch},
		{fmt.Errorf("%w: user agent", ErrMetadataMismatch), ReasonMetadataMismatch},
		{fmt.Errorf("%w: family revocation failed: %w", ErrReuseDetected, context.Canceled), ReasonReuseDetected},
		{errors.New("connection refused"), ""},
		{ErrTokenCollision, ""},
		{nil, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.expected, Reason(tt.err))
			assert.Equal(t, tt.expected != "", IsRejection(tt.err))
		})
	}
}

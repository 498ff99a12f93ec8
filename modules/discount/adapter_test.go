package discount

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	domain "github.com/wighaven/storefront/domain/discount"
)

func TestReasonError(t *testing.T) {
	tests := []struct {
		reason string
		want   error
	}{
		{domain.ErrExpired.Error(), domain.ErrExpired},
		{domain.ErrNotFound.Error(), domain.ErrNotFound},
		{domain.ErrMinimumNotMet.Error() + ": need 100.00", domain.ErrMinimumNotMet},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			err := reasonError(tt.reason)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.reason, err.Error())
		})
	}

	err := reasonError("something else")
	assert.False(t, domain.IsRuleError(err))
	assert.False(t, errors.Is(err, domain.ErrExpired))
}

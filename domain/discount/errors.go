package discount

import "errors"

// Sentinel errors returned by discount validation and storage.
var (
	// ErrNotFound is returned when no discount matches a code or ID.
	ErrNotFound = errors.New("coupon not found")

	// ErrExpired is returned when now >= expiresAt.
	ErrExpired = errors.New("coupon expired")

	// ErrNotYetActive is returned when now < startsAt.
	ErrNotYetActive = errors.New("coupon not yet active")

	// ErrUsageExceeded is returned when the usage cap has been reached.
	ErrUsageExceeded = errors.New("coupon usage limit reached")

	// ErrInactive is returned for a deactivated coupon.
	ErrInactive = errors.New("coupon inactive")

	// ErrMinimumNotMet is returned when the cart subtotal is below the
	// coupon's minimum.
	ErrMinimumNotMet = errors.New("cart subtotal below coupon minimum")

	// ErrExists is returned when creating a discount with a taken code.
	ErrExists = errors.New("coupon code already exists")
)

// IsRuleError reports whether err is a coupon applicability failure, as
// opposed to a storage error.
func IsRuleError(err error) bool {
	for _, target := range []error{ErrNotFound, ErrExpired, ErrNotYetActive, ErrUsageExceeded, ErrInactive, ErrMinimumNotMet} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

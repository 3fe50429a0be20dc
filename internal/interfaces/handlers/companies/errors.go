package companies

import (
	"errors"

	"ventry-backend/internal/pricing"
)

func isPricingInput(err error) bool {
	return errors.Is(err, pricing.ErrInvalidValuation) || errors.Is(err, pricing.ErrInvalidEquity)
}

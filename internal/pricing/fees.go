// Package pricing provides the processor fee model used for revenue metrics.
//
// Fee formula (Stripe standard card pricing):
//
//	Fee = Gross × FeePercent + FeeFlat
//
// Where:
//   - Gross = unit amount × quantity, in major currency units
//   - FeePercent = processor percentage (default 0.029 = 2.9%), STRIPE_FEE_PERCENT
//   - FeeFlat = flat per-transaction fee in major units (default 0.30), STRIPE_FEE_FLAT
//
// MRR is estimated with the flat fee charged once per unit of quantity:
//
//	NetMRR = GrossMRR × (1 − FeePercent) − FeeFlat × Quantity
//
// Actual fees from balance transactions always win over these estimates.
package pricing

import (
	"errors"
	"math"
)

const (
	DefaultFeePercent = 0.029
	DefaultFeeFlat    = 0.30

	// minorUnitsPerMajor converts Stripe amounts (cents) into dollars.
	// Zero-decimal currencies are not handled.
	minorUnitsPerMajor = 100.0
)

var (
	ErrInvalidFeePercent = errors.New("fee percent must be within [0, 1)")
	ErrInvalidFeeFlat    = errors.New("flat fee must not be negative")
)

// FeeModel holds the configured processor fee constants.
type FeeModel struct {
	Percent float64
	Flat    float64
}

// DefaultFeeModel returns Stripe's standard card pricing.
func DefaultFeeModel() FeeModel {
	return FeeModel{Percent: DefaultFeePercent, Flat: DefaultFeeFlat}
}

// Validate checks the fee constants are usable.
func (f FeeModel) Validate() error {
	if math.IsNaN(f.Percent) || f.Percent < 0 || f.Percent >= 1 {
		return ErrInvalidFeePercent
	}
	if math.IsNaN(f.Flat) || f.Flat < 0 {
		return ErrInvalidFeeFlat
	}
	return nil
}

// EstimateFee returns the estimated processor fee for a single transaction.
func (f FeeModel) EstimateFee(gross float64) float64 {
	return gross*f.Percent + f.Flat
}

// NetMRR returns recurring revenue after estimated fees for quantity units.
func (f FeeModel) NetMRR(gross float64, quantity int64) float64 {
	return gross*(1-f.Percent) - f.Flat*float64(quantity)
}

// ToMajor converts an amount in minor units (cents) to major units.
func ToMajor(minor int64) float64 {
	return float64(minor) / minorUnitsPerMajor
}

// LineGross returns unitAmount × quantity in major units.
func LineGross(unitAmount, quantity int64) float64 {
	return float64(unitAmount) * float64(quantity) / minorUnitsPerMajor
}

// Average returns total/count, or 0 when count is zero.
func Average(total float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	return total / float64(count)
}

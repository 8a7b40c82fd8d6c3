// Package fees computes the platform fee split for a sale.
//
// All amounts are integer pence. The platform charges a flat booking fee
// plus a percentage of the ticket price, both added on top of the price:
// the buyer pays price + fee and the seller receives the full price.
package fees

import (
	"errors"
	"fmt"
)

const (
	// DefaultFlatFeePence is the flat booking fee (£1.00).
	DefaultFlatFeePence = 100

	// DefaultPercentageBps is the percentage component in basis points (10%).
	DefaultPercentageBps = 1000
)

var ErrNegativePrice = errors.New("price cannot be negative")

// Schedule holds the fee parameters.
type Schedule struct {
	FlatFeePence  int64
	PercentageBps int64
}

// DefaultSchedule returns the standard £1.00 + 10% schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		FlatFeePence:  DefaultFlatFeePence,
		PercentageBps: DefaultPercentageBps,
	}
}

// Breakdown is the full fee split for a sale at a given price.
type Breakdown struct {
	PricePence         int64 `json:"pricePence"`
	FlatFeePence       int64 `json:"flatFeePence"`
	PercentageFeePence int64 `json:"percentageFeePence"`
	PlatformFeePence   int64 `json:"platformFeePence"`
	BuyerTotalPence    int64 `json:"buyerTotalPence"`
	SellerPayoutPence  int64 `json:"sellerPayoutPence"`
}

// Compute returns the fee breakdown for a price in pence.
// The percentage component is rounded half-up to the nearest penny.
func (s Schedule) Compute(pricePence int64) (Breakdown, error) {
	if pricePence < 0 {
		return Breakdown{}, ErrNegativePrice
	}

	percentageFee := (pricePence*s.PercentageBps + 5000) / 10000
	platformFee := s.FlatFeePence + percentageFee

	return Breakdown{
		PricePence:         pricePence,
		FlatFeePence:       s.FlatFeePence,
		PercentageFeePence: percentageFee,
		PlatformFeePence:   platformFee,
		BuyerTotalPence:    pricePence + platformFee,
		SellerPayoutPence:  pricePence,
	}, nil
}

// MinOffer returns the lowest acceptable offer for a listing price:
// 50% of the price, rounded half-up.
func MinOffer(pricePence int64) int64 {
	return (pricePence + 1) / 2
}

// MaxOffer returns the highest acceptable offer for a listing price:
// 110% of the price, rounded half-up.
func MaxOffer(pricePence int64) int64 {
	return (pricePence*110 + 50) / 100
}

// FormatGBP renders a pence amount as a display string, e.g. "£53.00".
func FormatGBP(pence int64) string {
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	return fmt.Sprintf("%s£%d.%02d", sign, pence/100, pence%100)
}

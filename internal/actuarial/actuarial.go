// Package actuarial holds the present-value and debt-service formulas behind
// the planning and Wisdom Index ratios.
package actuarial

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// DiscountRate is the annual rate used for every present-value factor.
	DiscountRate = 0.04
	// RetirementAge is the age at which the retirement horizon ends.
	RetirementAge = 65
)

// Fixed horizons, in years.
const (
	SurvivorHorizon  = 20
	LTCHorizon       = 20
	EducationHorizon = 10
	NewCarsHorizon   = 5
)

// AnnuityFactor returns the ordinary-annuity factor (1 - (1+r)^-years) / r.
// A non-positive horizon has no future payments and yields 0.
func AnnuityFactor(years, r float64) float64 {
	if years <= 0 {
		return 0
	}
	if r == 0 {
		return years
	}
	return (1 - math.Pow(1+r, -years)) / r
}

// PresentValue discounts a level annual cashflow over years at rate r.
func PresentValue(cashflow, years, r float64) float64 {
	return cashflow * AnnuityFactor(years, r)
}

// Loan is an active amortizing liability.
type Loan struct {
	Principal float64  `json:"principal"`
	Rate      *float64 `json:"rate"`
	TermYears *float64 `json:"term_years"`
}

// AnnualDebtService returns the yearly payment on a loan. With both a rate
// and a positive term it is the standard amortized payment
// P*(i/12)/(1-(1+i/12)^(-12n)), times 12. A zero rate repays P evenly over
// the term. Otherwise it falls back to P/12.
func AnnualDebtService(l Loan) float64 {
	p := math.Abs(l.Principal)
	if l.Rate == nil || l.TermYears == nil || *l.TermYears <= 0 || *l.Rate < 0 {
		return p / 12
	}
	if *l.Rate == 0 {
		return p / *l.TermYears
	}
	monthly := *l.Rate / 12
	n := *l.TermYears * 12
	return p * monthly / (1 - math.Pow(1+monthly, -n)) * 12
}

// TotalDebtService sums AnnualDebtService over loans.
func TotalDebtService(loans []Loan) float64 {
	var total float64
	for _, l := range loans {
		total += AnnualDebtService(l)
	}
	return total
}

// Ratio divides num by den. ok is false when den is zero or either operand
// is not finite.
func Ratio(num, den float64) (float64, bool) {
	if den == 0 || math.IsNaN(num) || math.IsNaN(den) || math.IsInf(num, 0) || math.IsInf(den, 0) {
		return 0, false
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

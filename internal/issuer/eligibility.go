package issuer

import (
	"github.com/holiman/uint256"

	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
)

// Default fixed-point constants of the eligibility computation.
const (
	DefaultScale    = 1000
	DefaultMintUnit = 1000
)

var (
	ErrNoEnergy              = errs.New(errs.KindInvalidState, "Energy produced must be greater than zero")
	ErrEmissionsTooHigh      = errs.New(errs.KindInvalidState, "Project emissions are too high!")
	ErrInsufficientReduction = errs.New(errs.KindInvalidState, "No sufficient CO2 reduction for minting NFTs")
	ErrOverflow              = errs.New(errs.KindInvalidState, "Arithmetic overflow")
)

// Quantities are the intermediate values of one eligibility computation.
type Quantities struct {
	AllowedEmissions *uint256.Int
	Reduction        *uint256.Int
	Tokens           uint64
}

// Evaluate decides how many tokens a project earns. It is a pure function of
// its inputs:
//
//	allowed   = energy * factor / scale
//	reduction = allowed - emissions
//	tokens    = reduction / mintUnit
//
// The returned Quantities are filled as far as the computation got, so a
// failed evaluation still reports the allowance.
func Evaluate(energy, emissions, factor *uint256.Int, scale, mintUnit uint64) (Quantities, error) {
	q := Quantities{
		AllowedEmissions: uint256.NewInt(0),
		Reduction:        uint256.NewInt(0),
	}
	if energy.IsZero() {
		return q, ErrNoEnergy
	}

	product, overflow := new(uint256.Int).MulOverflow(energy, factor)
	if overflow {
		return q, ErrOverflow
	}
	q.AllowedEmissions = product.Div(product, uint256.NewInt(scale))

	if !q.AllowedEmissions.Gt(emissions) {
		return q, ErrEmissionsTooHigh
	}
	q.Reduction = new(uint256.Int).Sub(q.AllowedEmissions, emissions)

	unit := uint256.NewInt(mintUnit)
	if q.Reduction.Lt(unit) {
		return q, ErrInsufficientReduction
	}
	tokens := new(uint256.Int).Div(q.Reduction, unit)
	if !tokens.IsUint64() {
		return q, ErrOverflow
	}
	q.Tokens = tokens.Uint64()
	return q, nil
}

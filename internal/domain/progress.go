package domain

import (
	"fmt"

	"github.com/taskpilot/taskpilot/internal/errors"
)

// Unit tags what a Progress value counts. The three common units are
// predefined; any other non-empty tag is accepted as a custom unit.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitItems   Unit = "items"
	UnitBytes   Unit = "bytes"
)

// String returns the string representation
func (u Unit) String() string {
	return string(u)
}

// Progress is an immutable amount/total pair tagged with a unit. A subtask's
// progress is replaced wholesale on every update, never mutated in place.
type Progress struct {
	amount float64
	total  float64
	unit   Unit
}

// NewProgress constructs a Progress value. Out-of-range values are rejected,
// never clamped: amount must be in [0, total] and total must be positive.
func NewProgress(amount, total float64, unit Unit) (Progress, error) {
	if total <= 0 {
		return Progress{}, errors.NewInvalidProgressError(fmt.Sprintf("total must be positive, got %g", total))
	}
	if amount < 0 {
		return Progress{}, errors.NewInvalidProgressError(fmt.Sprintf("amount must be non-negative, got %g", amount))
	}
	if amount > total {
		return Progress{}, errors.NewInvalidProgressError(fmt.Sprintf("amount %g exceeds total %g", amount, total))
	}
	if unit == "" {
		unit = UnitItems
	}
	return Progress{amount: amount, total: total, unit: unit}, nil
}

// PercentProgress expresses a completion fraction in [0,1] as a canonical
// percentage Progress. Used for broadcast aggregates.
func PercentProgress(fraction float64) Progress {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return Progress{amount: fraction * 100, total: 100, unit: UnitPercent}
}

// Amount returns the completed amount.
func (p Progress) Amount() float64 {
	return p.amount
}

// Total returns the total amount of work.
func (p Progress) Total() float64 {
	return p.total
}

// Unit returns the unit tag.
func (p Progress) Unit() Unit {
	return p.unit
}

// Fraction returns the completion fraction in [0,1]. The zero Progress
// (a subtask that has not started) reports 0.
func (p Progress) Fraction() float64 {
	if p.total <= 0 {
		return 0
	}
	return p.amount / p.total
}

// IsComplete reports whether the full total has been reached.
func (p Progress) IsComplete() bool {
	return p.total > 0 && p.amount >= p.total
}

// IsZero reports whether this is the zero value (no progress recorded).
func (p Progress) IsZero() bool {
	return p.total == 0
}

// String returns the string representation
func (p Progress) String() string {
	if p.unit == UnitPercent {
		return fmt.Sprintf("%.1f%%", p.Fraction()*100)
	}
	return fmt.Sprintf("%g/%g %s (%.1f%%)", p.amount, p.total, p.unit, p.Fraction()*100)
}

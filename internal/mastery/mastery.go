// Package mastery converts learner outcomes into bounded mastery percents and
// rolls activity percents up into unit and level completion.
//
// Percents are whole numbers in [0, 100]. Every operation rounds to the
// nearest integer before clamping, so repeated partial credits never drift
// between what is stored and what is displayed.
package mastery

import (
	"math"

	"github.com/vytor/phonicsmastery/internal/errors"
	"github.com/vytor/phonicsmastery/internal/models"
)

const (
	MinPercent = 0
	MaxPercent = 100
)

// PointValue is the credit earned (or lost) per item so that one clean pass
// over itemCount items reaches exactly MaxPercent.
func PointValue(itemCount int) (float64, error) {
	if itemCount < 1 {
		return 0, errors.ErrEmptyContent
	}
	return float64(MaxPercent) / float64(itemCount), nil
}

// ApplyOutcome returns the percent after one outcome. It never fails: an
// out-of-range current percent is clamped first, and a non-positive point
// value or unknown outcome leaves the percent unchanged.
func ApplyOutcome(current int, pointValue float64, outcome models.Outcome) int {
	current = Clamp(current)
	if pointValue <= 0 || math.IsNaN(pointValue) || math.IsInf(pointValue, 0) {
		return current
	}
	switch outcome {
	case models.OutcomeCorrect:
		return Clamp(int(math.Round(float64(current) + pointValue)))
	case models.OutcomeIncorrect:
		return Clamp(int(math.Round(float64(current) - pointValue)))
	default:
		return current
	}
}

// ResumeIndex maps a stored percent to the item an activity should restart at.
func ResumeIndex(percent, itemCount int) int {
	if itemCount < 1 {
		return 0
	}
	idx := Clamp(percent) * itemCount / MaxPercent
	if idx > itemCount-1 {
		idx = itemCount - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// AggregateUnit averages activity percents over the number of activities the
// curriculum expects, so unattempted activities count as zero. A
// non-positive expected count falls back to the number of entries given.
func AggregateUnit(percents map[models.ActivityType]int, expected int) int {
	if expected < 1 {
		expected = len(percents)
	}
	if expected < 1 {
		return MinPercent
	}
	sum := 0
	for _, p := range percents {
		sum += Clamp(p)
	}
	return Clamp(int(math.Round(float64(sum) / float64(expected))))
}

// AggregateLevel is the rounded mean of unit aggregates.
func AggregateLevel(unitPercents []int) int {
	if len(unitPercents) == 0 {
		return MinPercent
	}
	sum := 0
	for _, p := range unitPercents {
		sum += Clamp(p)
	}
	return Clamp(int(math.Round(float64(sum) / float64(len(unitPercents)))))
}

func Clamp(p int) int {
	if p < MinPercent {
		return MinPercent
	}
	if p > MaxPercent {
		return MaxPercent
	}
	return p
}

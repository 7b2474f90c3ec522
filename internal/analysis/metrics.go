package analysis

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoAssessments is returned when a metric has no gradable results to
// work with, e.g. every assessment came back unknown.
var ErrNoAssessments = errors.New("no gradable assessments")

// z value for a two-sided 95% interval
const z95 = 1.959963984540054

// Proportion is an estimated fraction with its 95% Wilson score interval.
// The interval is absolute: Low <= Value <= High.
type Proportion struct {
	Value float64
	Low   float64
	High  float64

	// Successes and Samples are the counts the estimate was made from.
	Successes int
	Samples   int
}

// NewProportion estimates successes/samples with a Wilson score interval.
// The Wilson interval stays inside [0, 1] and behaves sensibly at the
// extremes where the normal approximation collapses.
func NewProportion(successes, samples int) (Proportion, error) {
	if samples == 0 {
		return Proportion{}, ErrNoAssessments
	}
	if successes < 0 || successes > samples {
		return Proportion{}, fmt.Errorf("successes %d out of range for %d samples", successes, samples)
	}

	p := float64(successes) / float64(samples)
	n := float64(samples)
	z2 := z95 * z95
	denom := 1.0 + z2/n
	center := (p + z2/(2.0*n)) / denom
	half := z95 / denom * math.Sqrt(p*(1.0-p)/n+z2/(4.0*n*n))

	return Proportion{
		Value:     p,
		Low:       math.Max(0, center-half),
		High:      math.Min(1, center+half),
		Successes: successes,
		Samples:   samples,
	}, nil
}

// Rescaled maps the proportion and its interval through scale*x + offset.
// Used to move BBQ bias scores from [0, 1] onto [-1, 1].
func (p Proportion) Rescaled(scale, offset float64) Proportion {
	return Proportion{
		Value:     scale*p.Value + offset,
		Low:       scale*p.Low + offset,
		High:      scale*p.High + offset,
		Successes: p.Successes,
		Samples:   p.Samples,
	}
}

func (p Proportion) String() string {
	return fmt.Sprintf("%6.1f%% (95%% CI: %6.1f%% - %6.1f%%, n=%d)",
		p.Value*100.0, p.Low*100.0, p.High*100.0, p.Samples)
}

// Accuracy computes the fraction of assessments that are correct, with a
// 95% confidence interval. Unknown assessments are excluded from both the
// numerator and the denominator.
func Accuracy(assessments []Assessment) (Proportion, error) {
	var correct, graded int
	for _, a := range assessments {
		switch a {
		case AssessmentCorrect:
			correct++
			graded++
		case AssessmentIncorrect:
			graded++
		}
	}
	return NewProportion(correct, graded)
}

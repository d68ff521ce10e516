package simulation

import (
	"fmt"
	"math"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
)

// weights for the base performance score, they sum up to 1.0
const (
	WeightSpeed      = 0.3
	WeightHorsepower = 0.2
	WeightHandling   = 0.3
	WeightDurability = 0.2
)

// BaseScore is the weighted sum of the vehicle attributes.
// No normalization is applied.
func BaseScore(e *model.RaceEntry) float64 {
	return e.Speed*WeightSpeed +
		e.Horsepower*WeightHorsepower +
		e.Handling*WeightHandling +
		e.Durability*WeightDurability
}

// TrackFactor returns the surface dependent multiplier for an entry.
func TrackFactor(surface model.Surface, e *model.RaceEntry) float64 {
	switch surface {
	case model.SurfaceSnow:
		return e.Handling / 100
	case model.SurfaceGravel:
		return e.Durability / 100
	default:
		return 1.0
	}
}

// FinishTime computes the abstract finish time, lower is better.
func FinishTime(trackLengthKm, base, trackFactor, variance float64) (float64, error) {
	effective := base * trackFactor * variance
	if !(effective > 0) || math.IsInf(effective, 0) {
		return 0, fmt.Errorf("%w: effective performance %v is not usable",
			ErrInputInvalid, effective)
	}
	return trackLengthKm * 1000 / effective, nil
}

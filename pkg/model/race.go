package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Surface string

const (
	SurfacePaved  Surface = "paved"
	SurfaceSnow   Surface = "snow"
	SurfaceGravel Surface = "gravel" // loose surface
	SurfaceMixed  Surface = "mixed"  // anything else, no adjustment
)

var Surfaces = []Surface{SurfacePaved, SurfaceSnow, SurfaceGravel, SurfaceMixed}

func ParseSurface(s string) (Surface, error) {
	for _, v := range Surfaces {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown surface %q", s)
}

func (s Surface) Valid() bool {
	_, err := ParseSurface(string(s))
	return err == nil
}

type Race struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	TrackLengthKm float64         `json:"trackLengthKm"`
	Surface       Surface         `json:"surface"`
	EntryFee      decimal.Decimal `json:"entryFee"`
	PrizePool     decimal.Decimal `json:"prizePool"`
	ScheduledAt   time.Time       `json:"scheduledAt"`
}

// RaceEntry is a candidate for a single race run.
// It combines the vehicle attributes with the owning team's current budget.
type RaceEntry struct {
	VehicleID  int             `json:"vehicleId"`
	Model      string          `json:"model"`
	Speed      float64         `json:"speed"`
	Horsepower float64         `json:"horsepower"`
	Handling   float64         `json:"handling"`
	Durability float64         `json:"durability"`
	TeamID     int             `json:"teamId"`
	TeamName   string          `json:"teamName"`
	Budget     decimal.Decimal `json:"budget"`
}

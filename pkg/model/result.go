package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// ResultRecord is append-only. One record per participant and race run.
type ResultRecord struct {
	ID         int             `json:"id"`
	RunID      uuid.UUID       `json:"runId"`
	RaceID     int             `json:"raceId"`
	VehicleID  int             `json:"vehicleId"`
	TeamID     int             `json:"teamId"`
	FinishTime float64         `json:"finishTime"`
	Position   int             `json:"position"`
	Prize      decimal.Decimal `json:"prize"`
	RecordedAt time.Time       `json:"recordedAt"`
}

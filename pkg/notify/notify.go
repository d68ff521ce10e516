package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

type (
	// RaceSettled is sent after budgets and results of a race run are stored
	RaceSettled struct {
		RunID     uuid.UUID      `json:"runId"`
		RaceID    int            `json:"raceId"`
		RaceName  string         `json:"raceName"`
		SettledAt time.Time      `json:"settledAt"`
		Podium    []PodiumEntry  `json:"podium"`
		Teams     []BudgetChange `json:"teams"`
	}
	PodiumEntry struct {
		Position  int             `json:"position"`
		VehicleID int             `json:"vehicleId"`
		TeamID    int             `json:"teamId"`
		Prize     decimal.Decimal `json:"prize"`
	}
	BudgetChange struct {
		TeamID int             `json:"teamId"`
		Before decimal.Decimal `json:"before"`
		After  decimal.Decimal `json:"after"`
	}

	Publisher interface {
		PublishRaceSettled(ctx context.Context, msg *RaceSettled) error
		Close()
	}
	NoopPublisher struct{}

	multiPublisher []Publisher
)

var _ Publisher = (*NoopPublisher)(nil)

func RaceSettledSubject(raceID int) string {
	return fmt.Sprintf("rally.race.%d.settled", raceID)
}

func (NoopPublisher) PublishRaceSettled(ctx context.Context, msg *RaceSettled) error {
	return nil
}

func (NoopPublisher) Close() {}

// Multi returns a publisher that sends each message to all publishers.
// A failing publisher does not keep the others from receiving the message.
func Multi(publishers ...Publisher) Publisher {
	return multiPublisher(publishers)
}

func (m multiPublisher) PublishRaceSettled(ctx context.Context, msg *RaceSettled) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishRaceSettled(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiPublisher) Close() {
	for _, p := range m {
		p.Close()
	}
}

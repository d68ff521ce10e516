package simulation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/model"
)

var (
	ErrInputInvalid           = errors.New("invalid input")
	ErrNoEligibleParticipants = errors.New("no eligible participants")
)

type (
	Participant struct {
		Entry       model.RaceEntry `json:"entry"`
		BaseScore   float64         `json:"baseScore"`
		TrackFactor float64         `json:"trackFactor"`
		Variance    float64         `json:"variance"`
		FinishTime  float64         `json:"finishTime"`
		Position    int             `json:"position"`
		Prize       decimal.Decimal `json:"prize"`
	}

	// TeamSettlement holds the budget movement of a participating team.
	// Final == Initial - Fees + Prizes
	TeamSettlement struct {
		TeamID   int             `json:"teamId"`
		TeamName string          `json:"teamName"`
		Initial  decimal.Decimal `json:"initial"`
		Fees     decimal.Decimal `json:"fees"`
		Prizes   decimal.Decimal `json:"prizes"`
		Final    decimal.Decimal `json:"final"`
	}

	// Outcome of a race run. Participants are ranked best first, settlements
	// are in order of the first appearance of the team in the entries.
	Outcome struct {
		Race         model.Race           `json:"race"`
		Participants []Participant        `json:"participants"`
		Excluded     []model.RaceEntry    `json:"excluded"`
		Results      []model.ResultRecord `json:"results"`
		Settlements  []TeamSettlement     `json:"settlements"`
	}

	Engine struct {
		variance Variance
		log      *log.Logger
	}
	Option func(*Engine)
)

func NewEngine(opts ...Option) *Engine {
	ret := &Engine{
		log: log.Default().Named("simulation"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.variance == nil {
		ret.variance = NewUniformVariance(0)
	}
	return ret
}

func WithVariance(v Variance) Option {
	return func(e *Engine) {
		e.variance = v
	}
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// Simulate runs a single race. The entries are processed in the given order,
// which is also the order used for exact ties in finish time.
// The engine does not persist anything, the caller has to store the
// settlements and results of the outcome.
func (e *Engine) Simulate(race model.Race, entries []model.RaceEntry) (*Outcome, error) {
	if err := ValidateRace(&race); err != nil {
		return nil, err
	}
	for i := range entries {
		if err := ValidateEntry(&entries[i]); err != nil {
			return nil, err
		}
	}

	participants, excluded, settlements := e.selectParticipants(&race, entries)
	if len(participants) == 0 {
		e.log.Debug("no eligible participants",
			log.Int("raceID", race.ID),
			log.Int("candidates", len(entries)),
			log.String("fee", race.EntryFee.String()))
		return nil, ErrNoEligibleParticipants
	}

	for i := range participants {
		p := &participants[i]
		p.BaseScore = BaseScore(&p.Entry)
		p.TrackFactor = TrackFactor(race.Surface, &p.Entry)
		p.Variance = e.variance.Next()
		ft, err := FinishTime(race.TrackLengthKm, p.BaseScore, p.TrackFactor, p.Variance)
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", p.Entry.VehicleID, err)
		}
		p.FinishTime = ft
	}

	slices.SortStableFunc(participants, func(a, b Participant) int {
		switch {
		case a.FinishTime < b.FinishTime:
			return -1
		case a.FinishTime > b.FinishTime:
			return 1
		default:
			return 0
		}
	})

	prizes := PrizeTable(race.PrizePool)
	for i := range participants {
		p := &participants[i]
		p.Position = i + 1
		p.Prize = decimal.Zero
		if i < len(prizes) {
			p.Prize = prizes[i]
			s := settlements[p.Entry.TeamID]
			s.Prizes = s.Prizes.Add(p.Prize)
		}
	}

	ret := &Outcome{
		Race:         race,
		Participants: participants,
		Excluded:     excluded,
		Results: lo.Map(participants, func(p Participant, _ int) model.ResultRecord {
			return model.ResultRecord{
				RaceID:     race.ID,
				VehicleID:  p.Entry.VehicleID,
				TeamID:     p.Entry.TeamID,
				FinishTime: p.FinishTime,
				Position:   p.Position,
				Prize:      p.Prize,
			}
		}),
	}
	for _, teamID := range teamOrder(entries, settlements) {
		s := settlements[teamID]
		s.Final = s.Initial.Sub(s.Fees).Add(s.Prizes)
		ret.Settlements = append(ret.Settlements, *s)
	}
	e.log.Debug("race simulated",
		log.Int("raceID", race.ID),
		log.Int("participants", len(participants)),
		log.Int("excluded", len(excluded)))
	return ret, nil
}

// selectParticipants applies the entry fee against the running team budgets.
// A team with several vehicles pays the fee once per participating vehicle.
//
//nolint:whitespace // can't make both editor and linter happy
func (e *Engine) selectParticipants(race *model.Race, entries []model.RaceEntry) (
	participants []Participant,
	excluded []model.RaceEntry,
	settlements map[int]*TeamSettlement,
) {
	settlements = make(map[int]*TeamSettlement)
	running := make(map[int]decimal.Decimal)
	for i := range entries {
		entry := entries[i]
		budget, ok := running[entry.TeamID]
		if !ok {
			budget = entry.Budget
		}
		if budget.LessThan(race.EntryFee) {
			running[entry.TeamID] = budget
			excluded = append(excluded, entry)
			continue
		}
		s, ok := settlements[entry.TeamID]
		if !ok {
			// exclusions never change the running budget, so this is still
			// the budget before the race
			s = &TeamSettlement{
				TeamID:   entry.TeamID,
				TeamName: entry.TeamName,
				Initial:  budget,
				Fees:     decimal.Zero,
				Prizes:   decimal.Zero,
			}
			settlements[entry.TeamID] = s
		}
		s.Fees = s.Fees.Add(race.EntryFee)
		running[entry.TeamID] = budget.Sub(race.EntryFee)
		participants = append(participants, Participant{Entry: entry})
	}
	return participants, excluded, settlements
}

func teamOrder(entries []model.RaceEntry, settlements map[int]*TeamSettlement) []int {
	return lo.Uniq(lo.FilterMap(entries, func(e model.RaceEntry, _ int) (int, bool) {
		_, ok := settlements[e.TeamID]
		return e.TeamID, ok
	}))
}

func ValidateRace(race *model.Race) error {
	switch {
	case !(race.TrackLengthKm > 0) || math.IsInf(race.TrackLengthKm, 0):
		return fmt.Errorf("%w: track length must be positive", ErrInputInvalid)
	case race.EntryFee.IsNegative():
		return fmt.Errorf("%w: entry fee must not be negative", ErrInputInvalid)
	case race.PrizePool.IsNegative():
		return fmt.Errorf("%w: prize pool must not be negative", ErrInputInvalid)
	case !race.Surface.Valid():
		return fmt.Errorf("%w: unknown surface %q", ErrInputInvalid, race.Surface)
	}
	return nil
}

func ValidateEntry(e *model.RaceEntry) error {
	attrs := []struct {
		name  string
		value float64
	}{
		{"speed", e.Speed},
		{"horsepower", e.Horsepower},
		{"handling", e.Handling},
		{"durability", e.Durability},
	}
	for _, a := range attrs {
		if err := ValidateAttribute(a.name, a.value); err != nil {
			return fmt.Errorf("vehicle %d: %w", e.VehicleID, err)
		}
	}
	if e.Budget.IsNegative() {
		return fmt.Errorf("%w: team %d has a negative budget", ErrInputInvalid, e.TeamID)
	}
	return nil
}

func ValidateAttribute(name string, value float64) error {
	if !(value > 0) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrInputInvalid, name, value)
	}
	return nil
}

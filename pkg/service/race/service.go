package race

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/notify"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
)

var (
	ErrRaceNotFound       = errors.New("race not found")
	ErrPersistence        = errors.New("persistence failure")
	ErrResultsNotRecorded = errors.New("race settled but results not recorded")
)

type (
	// Settlement is a race run whose budget changes are committed.
	Settlement struct {
		RunID   uuid.UUID           `json:"runId"`
		Outcome *simulation.Outcome `json:"outcome"`
	}

	// ResultsNotRecordedError is returned when the budgets of a run are
	// committed but the result records could not be stored.
	// The settlement can be passed to RecordResults to try again.
	ResultsNotRecordedError struct {
		Settlement *Settlement
		Err        error
	}

	Service struct {
		repos     api.Repositories
		txMgr     api.TransactionManager
		engine    *simulation.Engine
		publisher notify.Publisher
		log       *log.Logger
		tracer    trace.Tracer
		meter     metric.Meter
		newRunID  func() (uuid.UUID, error)

		settledCounter    metric.Int64Counter
		failedCounter     metric.Int64Counter
		participantsHisto metric.Int64Histogram
	}
	Option func(*Service)
)

func (e *ResultsNotRecordedError) Error() string {
	return fmt.Sprintf("%s (run %s): %v", ErrResultsNotRecorded, e.Settlement.RunID, e.Err)
}

func (e *ResultsNotRecordedError) Unwrap() []error {
	return []error{ErrResultsNotRecorded, e.Err}
}

func NewService(repos api.Repositories, txMgr api.TransactionManager, opts ...Option) *Service {
	ret := &Service{
		repos:     repos,
		txMgr:     txMgr,
		publisher: notify.NoopPublisher{},
		log:       log.Default().Named("race"),
		newRunID:  uuid.NewV7,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.engine == nil {
		ret.engine = simulation.NewEngine(simulation.WithLogger(ret.log.Named("simulation")))
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("rally")
	}
	if ret.meter == nil {
		ret.meter = otel.Meter("rally")
	}
	ret.settledCounter, _ = ret.meter.Int64Counter("rally.races.settled",
		metric.WithDescription("number of settled race runs"))
	ret.failedCounter, _ = ret.meter.Int64Counter("rally.races.failed",
		metric.WithDescription("number of failed race runs"))
	ret.participantsHisto, _ = ret.meter.Int64Histogram("rally.race.participants",
		metric.WithDescription("participants per race run"))
	return ret
}

func WithEngine(e *simulation.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.meter = m
	}
}

func WithRunIDGenerator(f func() (uuid.UUID, error)) Option {
	return func(s *Service) {
		s.newRunID = f
	}
}

// Run simulates the race and settles it.
// Loading the race and the candidates, the simulation and the budget updates
// happen in one transaction with the team rows locked. Nothing is changed if
// any of these steps fail.
// The result records are written afterwards. If that fails the returned error
// is a *ResultsNotRecordedError, the budget changes stay in place.
func (s *Service) Run(ctx context.Context, raceID int) (*Settlement, error) {
	ctx, span := s.tracer.Start(ctx, "race.run",
		trace.WithAttributes(attribute.Int("race.id", raceID)))
	defer span.End()

	var outcome *simulation.Outcome
	err := s.txMgr.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = s.settle(ctx, raceID)
		return err
	})
	if err != nil {
		err = classify(err)
		s.failed(ctx, span, err)
		s.log.Warn("race run failed", log.Int("raceID", raceID), log.ErrorField(err))
		return nil, err
	}

	runID, err := s.newRunID()
	if err != nil {
		// budgets are committed already, there is no way back
		runID = uuid.Must(uuid.NewV4())
	}
	settlement := &Settlement{RunID: runID, Outcome: outcome}
	span.SetAttributes(attribute.String("race.run_id", runID.String()))
	s.participantsHisto.Record(ctx, int64(len(outcome.Participants)))

	if err := s.RecordResults(ctx, settlement); err != nil {
		s.failed(ctx, span, err)
		s.log.Error("results not recorded",
			log.Int("raceID", raceID),
			log.String("runID", runID.String()),
			log.ErrorField(err))
		return nil, err
	}

	s.settledCounter.Add(ctx, 1)
	s.log.Info("race settled",
		log.Int("raceID", raceID),
		log.String("runID", runID.String()),
		log.Int("participants", len(outcome.Participants)),
		log.Int("excluded", len(outcome.Excluded)))
	s.publish(ctx, settlement)
	return settlement, nil
}

// RecordResults stores the result records of a settlement with its run id.
// It is used by Run and may be called again after a *ResultsNotRecordedError.
func (s *Service) RecordResults(ctx context.Context, settlement *Settlement) error {
	records := lo.Map(settlement.Outcome.Results,
		func(r model.ResultRecord, _ int) model.ResultRecord {
			r.RunID = settlement.RunID
			return r
		})
	err := s.txMgr.RunInTx(ctx, func(ctx context.Context) error {
		return s.repos.Result().CreateAll(ctx, records)
	})
	if err != nil {
		return &ResultsNotRecordedError{Settlement: settlement, Err: err}
	}
	settlement.Outcome.Results = records
	return nil
}

func (s *Service) settle(ctx context.Context, raceID int) (*simulation.Outcome, error) {
	race, err := s.repos.Race().LoadByID(ctx, raceID)
	if err != nil {
		if errors.Is(err, api.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrRaceNotFound, raceID)
		}
		return nil, fmt.Errorf("%w: load race: %w", ErrPersistence, err)
	}
	entries, err := s.repos.Roster().LoadCandidates(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("%w: load candidates: %w", ErrPersistence, err)
	}
	outcome, err := s.engine.Simulate(*race, entries)
	if err != nil {
		return nil, err
	}
	for _, st := range outcome.Settlements {
		n, err := s.repos.Team().UpdateBudget(ctx, st.TeamID, st.Final)
		if err != nil {
			return nil, fmt.Errorf("%w: update budget of team %d: %w",
				ErrPersistence, st.TeamID, err)
		}
		if n != 1 {
			return nil, fmt.Errorf("%w: team %d not updated", ErrPersistence, st.TeamID)
		}
	}
	return outcome, nil
}

// classify wraps errors not raised by settle itself (e.g. commit failures)
func classify(err error) error {
	known := []error{
		ErrRaceNotFound,
		ErrPersistence,
		simulation.ErrInputInvalid,
		simulation.ErrNoEligibleParticipants,
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrResultsNotRecorded):
		return "results_not_recorded"
	case errors.Is(err, ErrRaceNotFound):
		return "not_found"
	case errors.Is(err, simulation.ErrInputInvalid):
		return "invalid_input"
	case errors.Is(err, simulation.ErrNoEligibleParticipants):
		return "no_participants"
	default:
		return "persistence"
	}
}

func (s *Service) failed(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, failureReason(err))
	s.failedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", failureReason(err))))
}

func (s *Service) publish(ctx context.Context, settlement *Settlement) {
	o := settlement.Outcome
	msg := &notify.RaceSettled{
		RunID:     settlement.RunID,
		RaceID:    o.Race.ID,
		RaceName:  o.Race.Name,
		SettledAt: time.Now(),
		Podium: lo.FilterMap(o.Participants,
			func(p simulation.Participant, _ int) (notify.PodiumEntry, bool) {
				return notify.PodiumEntry{
					Position:  p.Position,
					VehicleID: p.Entry.VehicleID,
					TeamID:    p.Entry.TeamID,
					Prize:     p.Prize,
				}, p.Position <= simulation.PrizedPositions()
			}),
		Teams: lo.Map(o.Settlements,
			func(st simulation.TeamSettlement, _ int) notify.BudgetChange {
				return notify.BudgetChange{TeamID: st.TeamID, Before: st.Initial, After: st.Final}
			}),
	}
	if err := s.publisher.PublishRaceSettled(ctx, msg); err != nil {
		s.log.Warn("could not publish race settlement",
			log.String("runID", settlement.RunID.String()),
			log.ErrorField(err))
	}
}

// Package memrepo provides in-memory repositories for tests of the service
// and endpoint layers.
package memrepo

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/repository/api"
)

type (
	Op    string
	txKey struct{}
)

const (
	OpLoadRace       Op = "loadRace"
	OpLoadCandidates Op = "loadCandidates"
	OpUpdateBudget   Op = "updateBudget"
	OpCreateResults  Op = "createResults"
	OpCommit         Op = "commit"
)

type (
	Store struct {
		mu       sync.Mutex
		txMu     sync.Mutex
		data     state
		failures map[Op]error
	}
	state struct {
		teams    map[int]model.Team
		vehicles map[int]model.Vehicle
		races    map[int]model.Race
		entries  map[int][]int
		results  []model.ResultRecord
		seq      int
	}
	teamRepo    struct{ s *Store }
	vehicleRepo struct{ s *Store }
	raceRepo    struct{ s *Store }
	rosterRepo  struct{ s *Store }
	resultRepo  struct{ s *Store }
)

var (
	_ api.Repositories       = (*Store)(nil)
	_ api.TransactionManager = (*Store)(nil)
)

func New() *Store {
	return &Store{
		data: state{
			teams:    map[int]model.Team{},
			vehicles: map[int]model.Vehicle{},
			races:    map[int]model.Race{},
			entries:  map[int][]int{},
		},
		failures: map[Op]error{},
	}
}

// Fail makes the operation op return err until cleared with a nil error
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op Op) error {
	return s.failures[op]
}

func (s *Store) Team() api.TeamRepository       { return teamRepo{s} }
func (s *Store) Vehicle() api.VehicleRepository { return vehicleRepo{s} }
func (s *Store) Race() api.RaceRepository       { return raceRepo{s} }
func (s *Store) Roster() api.RosterRepository   { return rosterRepo{s} }
func (s *Store) Result() api.ResultRepository   { return resultRepo{s} }

// RunInTx serializes transactions and restores the previous state
// if fn (or the simulated commit) fails.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	ctx = context.WithValue(ctx, txKey{}, s)
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	err := fn(ctx)
	if err == nil {
		s.mu.Lock()
		err = s.failure(OpCommit)
		s.mu.Unlock()
	}
	if err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
	}
	return err
}

// Results returns a copy of all stored result records
func (s *Store) Results() []model.ResultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.results)
}

// Budget returns the current budget of a team
func (s *Store) Budget(teamID int) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.teams[teamID].Budget
}

func (st *state) clone() state {
	entries := make(map[int][]int, len(st.entries))
	for k, v := range st.entries {
		entries[k] = slices.Clone(v)
	}
	return state{
		teams:    maps.Clone(st.teams),
		vehicles: maps.Clone(st.vehicles),
		races:    maps.Clone(st.races),
		entries:  entries,
		results:  slices.Clone(st.results),
		seq:      st.seq,
	}
}

func (st *state) nextID() int {
	st.seq++
	return st.seq
}

func sortedKeys[V any](m map[int]V) []int {
	return slices.Sorted(maps.Keys(m))
}

func (r teamRepo) Create(ctx context.Context, t *model.Team) (*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item := *t
	item.ID = r.s.data.nextID()
	r.s.data.teams[item.ID] = item
	return &item, nil
}

func (r teamRepo) LoadByID(ctx context.Context, id int) (*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.teams[id]
	if !ok {
		return nil, api.ErrNoRows
	}
	return &item, nil
}

func (r teamRepo) LoadAll(ctx context.Context) ([]*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ret := []*model.Team{}
	for _, id := range sortedKeys(r.s.data.teams) {
		item := r.s.data.teams[id]
		ret = append(ret, &item)
	}
	return ret, nil
}

func (r teamRepo) UpdateBudget(ctx context.Context, id int, budget decimal.Decimal) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpUpdateBudget); err != nil {
		return 0, err
	}
	item, ok := r.s.data.teams[id]
	if !ok {
		return 0, nil
	}
	item.Budget = budget
	r.s.data.teams[id] = item
	return 1, nil
}

func (r vehicleRepo) Create(ctx context.Context, v *model.Vehicle) (*model.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item := *v
	item.ID = r.s.data.nextID()
	r.s.data.vehicles[item.ID] = item
	return &item, nil
}

func (r vehicleRepo) LoadByID(ctx context.Context, id int) (*model.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.data.vehicles[id]
	if !ok {
		return nil, api.ErrNoRows
	}
	return &item, nil
}

func (r vehicleRepo) LoadAll(ctx context.Context, filter api.VehicleFilter) (
	[]*model.Vehicle, error,
) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ret := []*model.Vehicle{}
	teamID, byTeam := filter.TeamID.Get()
	for _, id := range sortedKeys(r.s.data.vehicles) {
		item := r.s.data.vehicles[id]
		if byTeam && item.TeamID != teamID {
			continue
		}
		ret = append(ret, &item)
	}
	return ret, nil
}

func (r raceRepo) Create(ctx context.Context, race *model.Race) (*model.Race, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item := *race
	item.ID = r.s.data.nextID()
	r.s.data.races[item.ID] = item
	return &item, nil
}

func (r raceRepo) LoadByID(ctx context.Context, id int) (*model.Race, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpLoadRace); err != nil {
		return nil, err
	}
	item, ok := r.s.data.races[id]
	if !ok {
		return nil, api.ErrNoRows
	}
	return &item, nil
}

func (r raceRepo) LoadAll(ctx context.Context, filter api.RaceFilter) ([]*model.Race, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ret := []*model.Race{}
	from, byTime := filter.ScheduledFrom.Get()
	surface, bySurface := filter.Surface.Get()
	for _, id := range sortedKeys(r.s.data.races) {
		item := r.s.data.races[id]
		if byTime && item.ScheduledAt.Before(from) {
			continue
		}
		if bySurface && item.Surface != surface {
			continue
		}
		ret = append(ret, &item)
	}
	slices.SortStableFunc(ret, func(a, b *model.Race) int {
		return a.ScheduledAt.Compare(b.ScheduledAt)
	})
	return ret, nil
}

func (r raceRepo) AddEntry(ctx context.Context, raceID, vehicleID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !slices.Contains(r.s.data.entries[raceID], vehicleID) {
		r.s.data.entries[raceID] = append(r.s.data.entries[raceID], vehicleID)
	}
	return nil
}

func (r rosterRepo) LoadCandidates(ctx context.Context, raceID int) (
	[]model.RaceEntry, error,
) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpLoadCandidates); err != nil {
		return nil, err
	}
	entered := r.s.data.entries[raceID]
	ret := []model.RaceEntry{}
	for _, id := range sortedKeys(r.s.data.vehicles) {
		if len(entered) > 0 && !slices.Contains(entered, id) {
			continue
		}
		v := r.s.data.vehicles[id]
		t := r.s.data.teams[v.TeamID]
		ret = append(ret, model.RaceEntry{
			VehicleID:  v.ID,
			Model:      v.Model,
			Speed:      v.Speed,
			Horsepower: v.Horsepower,
			Handling:   v.Handling,
			Durability: v.Durability,
			TeamID:     t.ID,
			TeamName:   t.Name,
			Budget:     t.Budget,
		})
	}
	return ret, nil
}

func (r resultRepo) CreateAll(ctx context.Context, records []model.ResultRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpCreateResults); err != nil {
		return err
	}
	now := time.Now()
	for i := range records {
		item := records[i]
		item.ID = r.s.data.nextID()
		item.RecordedAt = now
		r.s.data.results = append(r.s.data.results, item)
	}
	return nil
}

func (r resultRepo) LoadByRaceID(ctx context.Context, raceID int) (
	[]*model.ResultRecord, error,
) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var runs []uuid.UUID
	byRun := map[uuid.UUID][]*model.ResultRecord{}
	for i := range r.s.data.results {
		item := r.s.data.results[i]
		if item.RaceID != raceID {
			continue
		}
		if _, ok := byRun[item.RunID]; !ok {
			runs = append(runs, item.RunID)
		}
		byRun[item.RunID] = append(byRun[item.RunID], &item)
	}
	ret := []*model.ResultRecord{}
	// runs are stored in order, latest run first
	for _, runID := range slices.Backward(runs) {
		records := byRun[runID]
		slices.SortFunc(records, func(a, b *model.ResultRecord) int {
			return a.Position - b.Position
		})
		ret = append(ret, records...)
	}
	return ret, nil
}

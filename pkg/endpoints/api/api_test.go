//nolint:funlen // ok for tests
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/service/race"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
	"github.com/mpapenbr/rally-manager-go/testsupport/memrepo"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	store *memrepo.Store
	srv   *httptest.Server
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := memrepo.New()
	engine := simulation.NewEngine(simulation.WithVariance(simulation.FixedVariance(1.0)))
	srv := NewServer(
		registry.NewService(store, store),
		race.NewService(store, store, race.WithEngine(engine)),
		opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{store: store, srv: ts}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeAs[T any](t *testing.T, data []byte) T {
	t.Helper()
	var ret T
	require.NoError(t, json.Unmarshal(data, &ret), string(data))
	return ret
}

func TestRaceLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodPost, "/api/teams", `{"name":"Alpha","budget":"3000"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	team := decodeAs[model.Team](t, data)

	resp, data = env.do(t, http.MethodPost, "/api/vehicles",
		`{"teamId":`+itoa(team.ID)+`,"model":"Rocket","speed":350,"horsepower":1050,"handling":85,"durability":90}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	vehicle := decodeAs[model.Vehicle](t, data)
	assert.Equal(t, team.ID, vehicle.TeamID)

	resp, data = env.do(t, http.MethodPost, "/api/races",
		`{"name":"Rally Testland","trackLengthKm":100,"surface":"paved","entryFee":"1000","prizePool":"5000","scheduledAt":"2099-01-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	rc := decodeAs[model.Race](t, data)

	resp, data = env.do(t, http.MethodGet, "/api/races?upcoming=true&surface=paved", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Len(t, decodeAs[[]model.Race](t, data), 1)

	resp, data = env.do(t, http.MethodPost, "/api/races/"+itoa(rc.ID)+"/run", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	settlement := decodeAs[race.Settlement](t, data)
	require.Len(t, settlement.Outcome.Participants, 1)
	assert.Equal(t, 1, settlement.Outcome.Participants[0].Position)
	assert.True(t, decimal.NewFromInt(2000).Equal(settlement.Outcome.Participants[0].Prize))

	resp, data = env.do(t, http.MethodGet, "/api/teams/"+itoa(team.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.True(t, decimal.NewFromInt(4000).Equal(decodeAs[model.Team](t, data).Budget))

	resp, data = env.do(t, http.MethodGet, "/api/races/"+itoa(rc.ID)+"/results", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	results := decodeAs[[]model.ResultRecord](t, data)
	require.Len(t, results, 1)
	assert.Equal(t, settlement.RunID, results[0].RunID)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	poor, _ := env.store.Team().Create(ctx, &model.Team{Name: "Poor", Budget: decimal.NewFromInt(10)})
	_, _ = env.store.Vehicle().Create(ctx, &model.Vehicle{
		TeamID: poor.ID, Model: "car", Speed: 1, Horsepower: 1, Handling: 1, Durability: 1,
	})
	expensive, _ := env.store.Race().Create(ctx, &model.Race{
		Name: "expensive", TrackLengthKm: 10, Surface: model.SurfaceSnow,
		EntryFee: decimal.NewFromInt(1000), PrizePool: decimal.Zero,
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name: "unknown team", method: http.MethodGet, path: "/api/teams/4711",
			wantStatus: http.StatusNotFound, wantCode: CodeNotFound,
		},
		{
			name: "invalid id", method: http.MethodGet, path: "/api/teams/abc",
			wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput,
		},
		{
			name: "unknown race run", method: http.MethodPost, path: "/api/races/4711/run",
			wantStatus: http.StatusNotFound, wantCode: CodeNotFound,
		},
		{
			name: "no eligible participants", method: http.MethodPost,
			path:       "/api/races/" + itoa(expensive.ID) + "/run",
			wantStatus: http.StatusConflict, wantCode: CodeNoParticipants,
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/api/teams",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput,
		},
		{
			name: "unknown field", method: http.MethodPost, path: "/api/teams",
			body:       `{"name":"x","budget":"1","color":"red"}`,
			wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput,
		},
		{
			name: "negative budget", method: http.MethodPost, path: "/api/teams",
			body:       `{"name":"x","budget":"-1"}`,
			wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput,
		},
		{
			name: "unknown surface", method: http.MethodPost, path: "/api/races",
			body:       `{"name":"x","trackLengthKm":1,"surface":"ice","entryFee":"0","prizePool":"0"}`,
			wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput,
		},
		{
			name: "invalid surface filter", method: http.MethodGet, path: "/api/races?surface=ice",
			wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput,
		},
		{
			name: "invalid team filter", method: http.MethodGet, path: "/api/vehicles?team=x",
			wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput,
		},
		{
			name: "entry for unknown vehicle", method: http.MethodPost,
			path:       "/api/races/" + itoa(expensive.ID) + "/entries",
			body:       `{"vehicleId":4711}`,
			wantStatus: http.StatusNotFound, wantCode: CodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(data))
			got := decodeAs[ErrorResponse](t, data)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, resp.Header.Get(RequestIDHeader), got.RequestID)
		})
	}
	assert.True(t, decimal.NewFromInt(10).Equal(env.store.Budget(poor.ID)))
}

func TestResultsNotRecordedResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tm, _ := env.store.Team().Create(ctx, &model.Team{Name: "Alpha", Budget: decimal.NewFromInt(100)})
	_, _ = env.store.Vehicle().Create(ctx, &model.Vehicle{
		TeamID: tm.ID, Model: "car", Speed: 1, Horsepower: 1, Handling: 1, Durability: 1,
	})
	rc, _ := env.store.Race().Create(ctx, &model.Race{
		Name: "r", TrackLengthKm: 10, Surface: model.SurfacePaved,
		EntryFee: decimal.NewFromInt(10), PrizePool: decimal.NewFromInt(100),
	})
	env.store.Fail(memrepo.OpCreateResults, errors.New("disk full"))

	resp, data := env.do(t, http.MethodPost, "/api/races/"+itoa(rc.ID)+"/run", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	got := decodeAs[ErrorResponse](t, data)
	assert.Equal(t, CodeResultsNotRecorded, got.Code)
	require.NotNil(t, got.Settlement)
	assert.Len(t, got.Settlement.Outcome.Participants, 1)
	assert.True(t, decimal.NewFromInt(130).Equal(env.store.Budget(tm.ID)))
}

func TestEnterVehicle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tm, _ := env.store.Team().Create(ctx, &model.Team{Name: "Alpha", Budget: decimal.Zero})
	v, _ := env.store.Vehicle().Create(ctx, &model.Vehicle{
		TeamID: tm.ID, Model: "car", Speed: 1, Horsepower: 1, Handling: 1, Durability: 1,
	})
	rc, _ := env.store.Race().Create(ctx, &model.Race{
		Name: "r", TrackLengthKm: 10, Surface: model.SurfacePaved,
	})
	resp, data := env.do(t, http.MethodPost, "/api/races/"+itoa(rc.ID)+"/entries",
		`{"vehicleId":`+itoa(v.ID)+`}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, string(data))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, WithPinger(pingerFunc(func(ctx context.Context) error { return nil })))
	resp, data := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeAs[healthResponse](t, data).Status)

	down := newTestEnv(t,
		WithPinger(pingerFunc(func(ctx context.Context) error { return errors.New("down") })))
	resp, _ = down.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDIsKept(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodGet, env.srv.URL+"/api/teams", http.NoBody)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "my-request")
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "my-request", resp.Header.Get(RequestIDHeader))
}

func TestErrorResponseUniqueViolation(t *testing.T) {
	status, resp := errorResponse(&pgconn.PgError{Code: "23505", Detail: "Key (name)=(Alpha) already exists."})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeConflict, resp.Code)

	status, resp = errorResponse(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, resp.Code)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

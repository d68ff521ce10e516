package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	"github.com/mpapenbr/rally-manager-go/pkg/notify"
	"github.com/mpapenbr/rally-manager-go/pkg/notify/feed"
	"github.com/mpapenbr/rally-manager-go/pkg/service/race"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
	"github.com/mpapenbr/rally-manager-go/testsupport/memrepo"
)

func TestRaceEventStream(t *testing.T) {
	store := memrepo.New()
	ctx := context.Background()
	team, err := store.Team().Create(ctx, &model.Team{Name: "Alpha", Budget: decimal.NewFromInt(500)})
	require.NoError(t, err)
	_, err = store.Vehicle().Create(ctx, &model.Vehicle{
		TeamID: team.ID, Model: "Rocket", Speed: 300, Horsepower: 400, Handling: 80, Durability: 80,
	})
	require.NoError(t, err)
	rc, err := store.Race().Create(ctx, &model.Race{
		Name: "Night Stage", TrackLengthKm: 20, Surface: model.SurfaceGravel,
		EntryFee: decimal.NewFromInt(100), PrizePool: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	events := feed.New("test")
	defer events.Close()
	engine := simulation.NewEngine(simulation.WithVariance(simulation.FixedVariance(1.0)))
	srv := NewServer(
		registry.NewService(store, store),
		race.NewService(store, store, race.WithEngine(engine), race.WithPublisher(events)),
		WithEventSource(events))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	streamCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	runResp, err := ts.Client().Post(ts.URL+"/api/races/"+itoa(rc.ID)+"/run", "", nil)
	require.NoError(t, err)
	runResp.Body.Close()
	require.Equal(t, http.StatusOK, runResp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	var eventName, data string
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			eventName = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
			break
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, eventRaceSettled, eventName)
	var msg notify.RaceSettled
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, rc.ID, msg.RaceID)
	assert.Equal(t, "Night Stage", msg.RaceName)
	require.Len(t, msg.Podium, 1)
	require.Len(t, msg.Teams, 1)
	// 500 - 100 + 400
	assert.True(t, decimal.NewFromInt(800).Equal(msg.Teams[0].After))
}

func TestRaceEventStreamDisabled(t *testing.T) {
	env := newTestEnv(t)
	resp, data := env.do(t, http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeNotFound, decodeAs[ErrorResponse](t, data).Code)
}

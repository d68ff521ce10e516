package race

import (
	"bytes"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/mpapenbr/rally-manager-go/pkg/model"
	raceService "github.com/mpapenbr/rally-manager-go/pkg/service/race"
	"github.com/mpapenbr/rally-manager-go/pkg/simulation"
)

func sampleSettlement(t *testing.T) *raceService.Settlement {
	t.Helper()
	engine := simulation.NewEngine(simulation.WithVariance(simulation.FixedVariance(1.0)))
	outcome, err := engine.Simulate(
		model.Race{
			ID: 1, Name: "Arctic Sprint", TrackLengthKm: 50, Surface: model.SurfaceSnow,
			EntryFee: decimal.NewFromInt(100), PrizePool: decimal.NewFromInt(1000),
		},
		[]model.RaceEntry{
			{
				VehicleID: 1, Model: "Fjord RS", Speed: 300, Horsepower: 400,
				Handling: 90, Durability: 80, TeamID: 1, TeamName: "Nordic",
				Budget: decimal.NewFromInt(500),
			},
			{
				VehicleID: 2, Model: "Dune Hopper", Speed: 250, Horsepower: 300,
				Handling: 60, Durability: 90, TeamID: 2, TeamName: "Foxes",
				Budget: decimal.NewFromInt(50),
			},
		})
	assert.NilError(t, err)
	return &raceService.Settlement{RunID: uuid.Must(uuid.NewV4()), Outcome: outcome}
}

func TestPrintSettlementText(t *testing.T) {
	outputFormat = "text"
	buf := &bytes.Buffer{}
	assert.NilError(t, printSettlement(buf, sampleSettlement(t)))
	out := buf.String()
	assert.Assert(t, is.Contains(out, "Arctic Sprint"))
	assert.Assert(t, is.Contains(out, "Fjord RS"))
	assert.Assert(t, is.Contains(out, "Dune Hopper (Foxes)"))
	// 500 - 100 + 400
	assert.Assert(t, is.Contains(out, "800.00"))
}

func TestPrintSettlementJSON(t *testing.T) {
	outputFormat = "json"
	t.Cleanup(func() { outputFormat = "text" })
	buf := &bytes.Buffer{}
	s := sampleSettlement(t)
	assert.NilError(t, printSettlement(buf, s))
	assert.Assert(t, is.Contains(buf.String(), s.RunID.String()))
	assert.Assert(t, is.Contains(buf.String(), `"participants"`))
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	assert.NilError(t, err)
	assert.Equal(t, id, 42)
	for _, arg := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(arg)
		assert.Assert(t, err != nil, arg)
	}
}

package notify

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"
)

func TestRaceSettledSubject(t *testing.T) {
	assert.Equal(t, RaceSettledSubject(42), "rally.race.42.settled")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NilError(t, p.PublishRaceSettled(context.Background(), &RaceSettled{}))
	p.Close()
}

type recordingPublisher struct {
	received int
	closed   bool
	err      error
}

func (r *recordingPublisher) PublishRaceSettled(ctx context.Context, msg *RaceSettled) error {
	r.received++
	return r.err
}

func (r *recordingPublisher) Close() { r.closed = true }

func TestMulti(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	p := Multi(failing, ok)

	err := p.PublishRaceSettled(context.Background(), &RaceSettled{RaceID: 1})
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, failing.received, 1)
	assert.Equal(t, ok.received, 1)

	p.Close()
	assert.Assert(t, failing.closed)
	assert.Assert(t, ok.closed)
}

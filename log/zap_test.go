package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, InfoLevel).Named("test")
	l.Debug("hidden")
	l.Info("race settled", Int("raceID", 3), String("surface", "snow"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "race settled", entry["msg"])
	assert.Equal(t, "test", entry["logger"])
	assert.InDelta(t, 3, entry["raceID"], 0)
	assert.Equal(t, "snow", entry["surface"])
}

func TestWithFilter(t *testing.T) {
	var buf bytes.Buffer
	opt, err := WithFilter("*:rally.sql")
	require.NoError(t, err)
	l := New(&buf, DebugLevel, opt)
	l.Named("rally.api").Info("dropped")
	l.Named("rally.sql").Info("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithFilterInvalid(t *testing.T) {
	_, err := WithFilter("nolevel:::")
	assert.Error(t, err)
}

func TestGetFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, InfoLevel)
	ctx := AddToContext(context.Background(), l)
	assert.Same(t, l, GetFromContext(ctx))
	assert.Same(t, Default(), GetFromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, level)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

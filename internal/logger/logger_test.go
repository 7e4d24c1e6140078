package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	log.Info().Str("company", "co1").Msg("matching complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "matching complete", entry["message"])
	assert.Equal(t, "co1", entry["company"])
	assert.NotEmpty(t, entry["time"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	ctx := WithContext(context.Background(), log)
	ctxLog := FromContext(ctx)
	ctxLog.Info().Msg("from context")

	assert.Contains(t, buf.String(), "from context")
}

func TestFromContextFallsBack(t *testing.T) {
	// No logger attached; must not panic.
	log := FromContext(context.Background())
	log.Debug().Msg("fallback")
}

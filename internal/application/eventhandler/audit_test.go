package eventhandler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/infrastructure/messaging"
)

func TestAuditLog_LogsEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	audit := NewAuditLog(l, slog.LevelInfo)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()
	require.NoError(t, audit.Subscribe(bus))

	at := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("u1", "Aru", 20, 20, 2, "mission", at)))
	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("u1", "Aru", -5, 15, 2, "redeem", at)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2, at)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "ledger event", rec["msg"])
	assert.Equal(t, "audit", rec["component"])
	assert.Equal(t, string(shared.EventPointsAwarded), rec["event_type"])
	assert.Equal(t, "u1", rec["aggregate_id"])
	assert.Equal(t, float64(20), rec["delta"])
	assert.Equal(t, "mission", rec["reason"])
	assert.NotContains(t, rec, "user_id")

	assert.Equal(t, map[shared.EventType]int{
		shared.EventPointsAwarded: 2,
		shared.EventLevelUp:       1,
	}, audit.Counts())
}

func TestAuditLog_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	audit := NewAuditLog(l, slog.LevelDebug)

	require.NoError(t, audit.Handle(shared.NewSeasonResetEvent("s1", 4, time.Now())))
	assert.Empty(t, buf.String())
	assert.Equal(t, 1, audit.Counts()[shared.EventSeasonReset])
}

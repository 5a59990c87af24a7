package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-rewards/config"
	"github.com/alem-hub/alem-rewards/internal/application/query"
	"github.com/alem-hub/alem-rewards/internal/domain/progression"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/pkg/logger"
)

type harness struct {
	t   *testing.T
	app *app
	out *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		App:      config.AppConfig{Name: "ledgerctl-test", Environment: config.EnvDevelopment},
		Database: config.DatabaseConfig{Store: config.StoreMemory},
		Redis:    config.RedisConfig{Disabled: true},
		Progression: config.ProgressionConfig{
			Thresholds:     progression.DefaultThresholds,
			FirstStepsName: "First Steps",
		},
	}

	var out, errOut bytes.Buffer
	log := logger.New(logger.Options{Output: &errOut, Format: logger.FormatText})

	a, err := bootstrap(context.Background(), cfg, log, &out, &errOut)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &harness{t: t, app: a, out: &out}
}

// run executes a command line and returns its stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	h.out.Reset()
	err := h.app.execute(context.Background(), args)
	return h.out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "ledgerctl %s", strings.Join(args, " "))
	return out
}

func TestCLI_SeedIsIdempotent(t *testing.T) {
	h := newHarness(t)

	first := h.mustRun("seed")
	assert.Contains(t, first, "0 already present")

	second := h.mustRun("seed")
	assert.Contains(t, second, "seeded: 0 created")
}

func TestCLI_MissionFlow(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")
	h.mustRun("user", "-name", "Aru", "u1")

	out := h.mustRun("complete", "u1", "daily_checkin")
	assert.Contains(t, out, "+5 points (x1.00), balance 5")
	assert.Contains(t, out, "unlocked:")
	assert.Contains(t, out, "First Steps")

	_, err := h.run("complete", "u1", "daily_checkin")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrEligibility)
	assert.Equal(t, 3, exitCode(err))

	out = h.mustRun("missions", "u1")
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "daily_checkin"):
			assert.Contains(t, line, " in ")
		case strings.HasPrefix(line, "weekly_review"):
			assert.True(t, strings.HasSuffix(line, "available"), line)
		}
	}

	out = h.mustRun("profile", "u1")
	assert.Contains(t, out, "u1 (Aru)")
	assert.Contains(t, out, "missions completed  1")
}

func TestCLI_EventMultipliesAwards(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")
	h.mustRun("user", "-name", "Dana", "u2")

	assert.Contains(t, h.mustRun("event"), "no event in effect")
	assert.Contains(t, h.mustRun("activate-event", "-name", "Double", "-multiplier", "2", "-hours", "1"), "activated event")
	assert.Contains(t, h.mustRun("event"), "Double x2.00")

	assert.Contains(t, h.mustRun("complete", "u2", "weekly_review"), "+60 points (x2.00)")
	assert.Contains(t, h.mustRun("deactivate-events"), "deactivated 1 event(s)")
}

func TestCLI_RedeemAndRanking(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")
	h.mustRun("user", "-name", "Aru", "u1")
	h.mustRun("user", "-name", "Bek", "u2")
	h.mustRun("complete", "u2", "weekly_review")

	out := h.mustRun("redeem", "u2", "sticker_pack")
	assert.Contains(t, out, "-20 points, balance 10")
	assert.Contains(t, out, "stock left 49")

	_, err := h.run("redeem", "u1", "sticker_pack")
	assert.ErrorIs(t, err, shared.ErrEligibility)

	lines := strings.Split(strings.TrimSpace(h.mustRun("ranking", "-n", "5")), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "u2")
	assert.Contains(t, lines[2], "u1")
}

func TestCLI_ResetSeasonAndArchives(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")
	h.mustRun("user", "-name", "Aru", "u1")
	h.mustRun("complete", "u1", "weekly_review")

	out := h.mustRun("reset-season")
	require.True(t, strings.HasPrefix(out, "season archived as "))
	id := strings.TrimSpace(strings.TrimPrefix(out, "season archived as "))

	assert.Contains(t, h.mustRun("archives"), id)

	detail := h.mustRun("archives", id)
	assert.Contains(t, detail, "archive "+id)
	assert.Contains(t, detail, "30")

	assert.Contains(t, h.mustRun("profile", "u1"), "points              0")
}

func TestCLI_ExportWritesCSV(t *testing.T) {
	h := newHarness(t)
	h.mustRun("seed")
	h.mustRun("user", "-name", "Aru", "u1")

	rows, err := csv.NewReader(strings.NewReader(h.mustRun("export"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, query.ExportColumns, rows[0])

	path := filepath.Join(t.TempDir(), "users.csv")
	assert.Contains(t, h.mustRun("export", "-o", path), "exported 1 user(s)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), strings.Join(query.ExportColumns, ",")))
}

func TestCLI_CatalogAdmin(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.mustRun("create-mission", "-id", "pair", "-name", "Pair session", "-points", "15", "-type", "daily"),
		"created mission pair (15 points, cooldown 24h0m0s)")
	assert.Contains(t, h.mustRun("set-mission-active", "-active=false", "pair"), "active=false")

	assert.Contains(t, h.mustRun("create-item", "-id", "mug", "-name", "Mug", "-cost", "40", "-stock", "2"),
		"stock 2")
	assert.Contains(t, h.mustRun("restock", "mug", "3"), "stock 5")
	assert.Contains(t, h.mustRun("shop"), "mug")

	_, err := h.run("create-item", "-id", "mug", "-name", "Mug", "-cost", "40")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCLI_UsageErrors(t *testing.T) {
	h := newHarness(t)

	tests := [][]string{
		{},
		{"no-such-command"},
		{"complete", "u1"},
		{"restock", "mug", "many"},
		{"ranking", "-n"},
	}
	for _, args := range tests {
		_, err := h.run(args...)
		require.Error(t, err, "%v", args)
		assert.Equal(t, 2, exitCode(err), "%v", args)
	}

	_, err := h.run("migrate")
	assert.ErrorContains(t, err, "has no schema")
}

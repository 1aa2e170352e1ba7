package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuetycoon/tycoond/internal/config"
	"github.com/valuetycoon/tycoond/internal/notify"
	"github.com/valuetycoon/tycoond/internal/store/memory"
)

func newTestApp(t *testing.T) (*App, *Dependencies) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Defaults()
	cfg.Mode = "engine"
	// Unroutable source so the immediate market refresh fails fast instead
	// of reaching out to the real API.
	cfg.Feed.BaseURL = "http://127.0.0.1:0"
	cfg.Scheduler.MarketRetryDelay = config.Duration{Duration: time.Hour}

	profiles := memory.NewProfileStore(cfg.Game.InitialCash)
	deps := &Dependencies{
		Profiles:     profiles,
		Positions:    memory.NewSpotPositionStore(profiles),
		Leveraged:    memory.NewLeverageStore(profiles),
		Properties:   memory.NewPropertyStore(profiles),
		Quotes:       memory.NewQuoteStore(),
		Ledger:       memory.NewLedgerStore(),
		Economy:      memory.NewEconomyStore(),
		Achievements: memory.NewAchievementStore(),
		Notifier:     notify.NewNotifier(nil, nil, profiles, logger),
	}
	return New(&cfg, logger), deps
}

func TestEngineModeRunsUntilCancelled(t *testing.T) {
	a, deps := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.EngineMode(ctx, deps)
	}()

	select {
	case err := <-done:
		t.Fatalf("engine mode returned before cancellation: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine mode did not stop after cancellation")
	}
}

func TestBuildControllerRegistersTaskSet(t *testing.T) {
	a, deps := newTestApp(t)

	eng := a.buildEngines(deps)
	ctrl := a.buildController(deps, eng)

	var names []string
	for _, st := range ctrl.Status() {
		names = append(names, st.Name)
	}
	require.Contains(t, names, "market_refresh")
	require.Contains(t, names, "risk_scan")
	require.Contains(t, names, "economy_tick")
	require.Contains(t, names, "world_event")
	require.Contains(t, names, "health_probe")
}

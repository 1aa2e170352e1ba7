package economy

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// ChannelWorldEvents is the signal bus channel world events are published on.
const ChannelWorldEvents = "world_events"

// worldEvents is the canned pool one event is drawn from.
var worldEvents = []domain.WorldEvent{
	{ID: "etf_inflow", Message: "📈 Institutional ETF inflows push crypto sentiment up!", Effect: 1.05},
	{ID: "exchange_hack", Message: "🚨 A major exchange reports a security breach. Markets are nervous.", Effect: 0.95},
	{ID: "rate_decision", Message: "🏦 Central bank holds rates steady. Traders breathe out.", Effect: 1.0},
	{ID: "meme_rally", Message: "🚀 A meme coin rally spills over into the majors!", Effect: 1.08},
	{ID: "regulation_fud", Message: "⚖️ New regulation drafts leak. Uncertainty rises.", Effect: 0.92},
}

// WorldEventEmitter rolls the dice on a schedule and, on a hit, broadcasts a
// random market-news event to every player.
type WorldEventEmitter struct {
	chance   float64
	bus      domain.SignalBus
	notifier domain.Notifier
	logger   *slog.Logger
	rng      *rand.Rand
}

// NewWorldEventEmitter creates an emitter that fires with the given
// probability per invocation. The bus and notifier may be nil.
func NewWorldEventEmitter(chance float64, bus domain.SignalBus, notifier domain.Notifier, logger *slog.Logger) *WorldEventEmitter {
	return &WorldEventEmitter{
		chance:   chance,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "world_events")),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// MaybeEmit rolls once and broadcasts an event on a hit. It returns the
// emitted event, or nil when the roll missed.
func (w *WorldEventEmitter) MaybeEmit(ctx context.Context) (*domain.WorldEvent, error) {
	if w.rng.Float64() >= w.chance {
		return nil, nil
	}

	event := worldEvents[w.rng.Intn(len(worldEvents))]
	w.logger.Info("world event", slog.String("event_id", event.ID))

	if w.bus != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			if err := w.bus.Publish(ctx, ChannelWorldEvents, payload); err != nil {
				w.logger.Warn("publish world event failed", slog.Any("error", err))
			}
		}
	}
	if w.notifier != nil {
		if err := w.notifier.Notify(ctx, 0, domain.EventWorldEvent, "Market news", event.Message); err != nil {
			w.logger.Warn("broadcast world event failed", slog.Any("error", err))
		}
	}
	return &event, nil
}

// Package notify delivers player-facing game events over one or more
// channels (Telegram, Discord, etc.), filtered by event kind. Delivery is
// best-effort: the engines treat errors as advisory.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valuetycoon/tycoond/internal/domain"
)

// broadcastLimit caps how many players a single broadcast fans out to.
const broadcastLimit = 10_000

// Sender is one delivery channel. userID 0 means the notification has no
// specific addressee; channel implementations decide what that means.
type Sender interface {
	Send(ctx context.Context, userID int64, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier implements domain.Notifier by fanning out to all registered
// senders. It maintains a set of allowed event kinds; events outside the set
// are dropped silently.
type Notifier struct {
	senders  []Sender
	events   map[domain.EventKind]bool
	profiles domain.ProfileStore
	logger   *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// whose kind appears in the events slice are forwarded; an empty slice allows
// everything. The profile store expands broadcasts into per-user sends and
// may be nil when no per-user channel is registered.
func NewNotifier(senders []Sender, events []string, profiles domain.ProfileStore, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(events))
	for _, e := range events {
		allowed[domain.EventKind(strings.TrimSpace(e))] = true
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		profiles: profiles,
		logger:   logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers one event. userID 0 broadcasts to every player.
func (n *Notifier) Notify(ctx context.Context, userID int64, kind domain.EventKind, title, message string) error {
	if len(n.events) > 0 && !n.events[kind] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("kind", string(kind)))
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	if userID == 0 {
		return n.broadcast(ctx, title, message)
	}
	return n.dispatch(ctx, userID, title, message)
}

// broadcast fans the message out to every known player. Per-user channels get
// one send per player; channel-level senders see the zero userID once.
func (n *Notifier) broadcast(ctx context.Context, title, message string) error {
	if n.profiles == nil {
		return n.dispatch(ctx, 0, title, message)
	}

	ids, err := n.profiles.ListIDs(ctx, broadcastLimit)
	if err != nil {
		return fmt.Errorf("notify: list broadcast targets: %w", err)
	}

	var failed int
	for _, id := range ids {
		if err := n.dispatch(ctx, id, title, message); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("notify: broadcast failed for %d of %d players", failed, len(ids))
	}
	return nil
}

// dispatch sends to all senders. Errors are collected; one failing sender
// does not stop delivery to the rest.
func (n *Notifier) dispatch(ctx context.Context, userID int64, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, userID, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

var _ domain.Notifier = (*Notifier)(nil)

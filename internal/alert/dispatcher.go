package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradeease/workflowgate/internal/eventbus"
)

// Dispatcher turns blocked-operation events into operator alerts. Sends are
// paced by a token bucket so a burst of blocked requests cannot turn into an
// alert storm.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   *Sender
	limiter  *rate.Limiter
}

func NewDispatcher(eventBus *eventbus.Bus, sender *Sender) *Dispatcher {
	return &Dispatcher{
		eventBus: eventBus,
		sender:   sender,
		// At most one alert per 30s with a small burst allowance.
		limiter: rate.NewLimiter(rate.Every(30*time.Second), 3),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("alert dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("alert dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type == eventbus.EventTypeOperationBlocked {
				d.handleBlocked(ctx, event)
			}
		}
	}
}

func (d *Dispatcher) handleBlocked(ctx context.Context, event *eventbus.Event) {
	if !d.limiter.Allow() {
		slog.Debug("alert: suppressed by pacing", "user_id", event.UserID)
		return
	}

	d.sender.SendToAll(ctx, &NotificationPayload{
		Title: "Suspicious workflow activity",
		Body:  fmt.Sprintf("Blocked %s operation from user %s: %s", event.Operation, event.UserID, event.Message),
		Tag:   "workflowgate-blocked",
	})
}

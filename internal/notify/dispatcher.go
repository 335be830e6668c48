package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"stock-tracker/internal/logging"
	"stock-tracker/internal/models"
)

// Dispatcher is the event hub consumer that hands events to a Notifier.
// Delivery failures are logged and returned to the hub; they never feed back
// into alert state.
type Dispatcher struct {
	notifier Notifier
	logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(n Notifier, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, logger: logging.WithComponent(logger, "notify")}
}

// Name implements stream.Consumer.
func (d *Dispatcher) Name() string {
	return "notify"
}

// OnEvent implements stream.Consumer.
func (d *Dispatcher) OnEvent(ctx context.Context, ev models.AlertEvent) error {
	if err := d.notifier.SendEvent(ctx, ev); err != nil {
		d.logger.Warn().Err(err).
			Str("event_id", ev.Meta().ID).
			Str("symbol", models.EventSymbol(ev)).
			Msg("Notification delivery failed")
		return fmt.Errorf("delivering %s: %w", ev.Kind(), err)
	}
	d.logger.Debug().Str("event_id", ev.Meta().ID).Str("kind", string(ev.Kind())).Msg("Notification delivered")
	return nil
}

package cockpit

import (
	"context"
	"log/slog"

	"github.com/punkyapp/diabetes-cockpit/internal/domain"
)

// Gate wraps therapy-changing operations behind the PIN confirmation
// collaborator. On denial the wrapped operation never runs; on grant
// the operation's own success is reported independently of the grant.
type Gate struct {
	pin    domain.PinConfirmer
	logger *slog.Logger
}

// NewGate creates a gate using the given confirmer.
func NewGate(pin domain.PinConfirmer, logger *slog.Logger) *Gate {
	return &Gate{pin: pin, logger: logger}
}

// Guard awaits the PIN confirmation and, only when granted, runs op.
// A failed confirmation prompt counts as denial. The returned error is
// the wrapped operation's error and is always nil when denied.
func (g *Gate) Guard(ctx context.Context, action domain.GateAction, op func(context.Context) error) (domain.AuthorizationOutcome, error) {
	ok, err := g.pin.Confirm(ctx)
	if err != nil {
		g.logger.Warn("PIN confirmation failed", "action", action.String(), "error", err)
		return domain.OutcomeDenied, nil
	}
	if !ok {
		g.logger.Info("PIN denied", "action", action.String())
		return domain.OutcomeDenied, nil
	}

	g.logger.Info("PIN confirmed", "action", action.String())
	return domain.OutcomeGranted, op(ctx)
}

package realtime

import (
	"context"

	"duoaccount/internal/core"
	"duoaccount/internal/log"
)

// Refresher reloads ledger state after a change made elsewhere.
type Refresher interface {
	HandleRemoteChange(ctx context.Context, ev core.ChangeEvent) error
}

// Relay forwards change events received from the broker to this process's
// hub and ledger. Events stamped with this process's own instance id were
// already handled locally and are skipped.
type Relay struct {
	hub      interface{ Broadcast(core.ChangeEvent) }
	ledger   Refresher
	instance string
	logger   *log.Logger
}

func NewRelay(hub interface{ Broadcast(core.ChangeEvent) }, ledger Refresher, instanceID string, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.Discard()
	}
	return &Relay{hub: hub, ledger: ledger, instance: instanceID, logger: logger.WithComponent(log.ComponentRealtime)}
}

// Handle has the signature of an amqp.Handler.
func (r *Relay) Handle(ctx context.Context, ev core.ChangeEvent) error {
	if ev.Source != "" && ev.Source == r.instance {
		return nil
	}
	r.logger.DebugContext(ctx, "Relaying remote change", log.FieldDuoID, ev.DuoID, log.FieldOperation, string(ev.Op))
	if r.ledger != nil {
		if err := r.ledger.HandleRemoteChange(ctx, ev); err != nil {
			return err
		}
	}
	r.hub.Broadcast(ev)
	return nil
}

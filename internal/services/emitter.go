package services

import (
	"context"

	"github.com/uplinepay/uplinepay-backend/internal/realtime"
	"github.com/uplinepay/uplinepay-backend/internal/realtime/bus"
)

type EventEmitter interface {
	Emit(ctx context.Context, event realtime.Event)
}

// HubEmitter delivers straight into the local hub; the single-instance path.
type HubEmitter struct{ Hub *realtime.Hub }

func (e *HubEmitter) Emit(ctx context.Context, event realtime.Event) {
	e.Hub.Broadcast(event)
}

// BusEmitter publishes through the shared bus so every instance's hub sees
// the event, this instance included (its forwarder loops it back).
type BusEmitter struct{ Bus bus.Bus }

func (e *BusEmitter) Emit(ctx context.Context, event realtime.Event) {
	_ = e.Bus.Publish(ctx, event)
}

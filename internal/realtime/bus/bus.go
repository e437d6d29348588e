package bus

import (
	"context"

	"github.com/uplinepay/uplinepay-backend/internal/realtime"
)

// Bus fans events out across service instances. Publish puts an event on the
// shared channel; StartForwarder feeds everything arriving on that channel
// into the local hub.
type Bus interface {
	Publish(ctx context.Context, event realtime.Event) error
	StartForwarder(ctx context.Context, onEvent func(e realtime.Event)) error
	Close() error
}

package notify

import (
	"fmt"

	"github.com/aaronsb/screentimed/pkg/logger"
)

// Dispatcher walks an ordered backend chain, stopping at the first
// backend whose IsAvailable is true and whose Send returns a non-empty
// id (spec §4.8). LogOnly, always present at the tail, guarantees Send
// never fails outright.
type Dispatcher struct {
	chain []Backend
	log   logger.Logger
}

// NewDispatcher builds a Dispatcher over chain, in priority order. A
// typical chain is [Clippy, Freedesktop, LogOnly].
func NewDispatcher(log logger.Logger, chain ...Backend) *Dispatcher {
	return &Dispatcher{chain: chain, log: log}
}

// Send delivers r through the chain and returns which backend
// succeeded along with the id it assigned.
func (d *Dispatcher) Send(r Rendered) (backend string, notificationID string, err error) {
	for _, b := range d.chain {
		if !b.IsAvailable(r.User) {
			continue
		}
		id, sendErr := b.Send(r)
		if sendErr != nil {
			d.log.Warn("notification backend failed, falling through", "backend", b.Name(), "user", r.User, "error", sendErr)
			continue
		}
		if id == "" {
			continue
		}
		return b.Name(), id, nil
	}
	return "", "", fmt.Errorf("no notification backend accepted delivery for %s", r.User)
}

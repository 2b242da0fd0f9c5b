// Package guard decides where a browser belongs based on its session state.
package guard

import (
	"context"

	"github.com/angelmondragon/productdesk/internal/session"
)

// State is the outcome of resolving a snapshot.
type State string

const (
	StateLoading       State = "LOADING"
	StateAuthenticated State = "AUTHENTICATED"
	StateAnonymous     State = "ANONYMOUS"
)

const (
	DashboardPath = "/dashboard"
	LoginPath     = "/login"
)

// Decision tells the caller what to render. Location is empty while loading; Replace asks
// for a navigation that does not add a history entry.
type Decision struct {
	State    State
	Location string
	Replace  bool
}

// Resolve maps a snapshot to a decision.
func Resolve(snap session.Snapshot) Decision {
	switch {
	case snap.Loading:
		return Decision{State: StateLoading}
	case snap.User != nil:
		return Decision{State: StateAuthenticated, Location: DashboardPath, Replace: true}
	default:
		return Decision{State: StateAnonymous, Location: LoginPath, Replace: true}
	}
}

// Watcher is the part of the session store Await listens to.
type Watcher interface {
	Watch() (<-chan session.Snapshot, func())
}

// Await re-resolves on every store change until the decision leaves LOADING. When ctx ends
// first the LOADING decision is returned.
func Await(ctx context.Context, w Watcher) Decision {
	ch, cancel := w.Watch()
	defer cancel()

	decision := Decision{State: StateLoading}
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return decision
			}
			decision = Resolve(snap)
			if decision.State != StateLoading {
				return decision
			}
		case <-ctx.Done():
			return decision
		}
	}
}

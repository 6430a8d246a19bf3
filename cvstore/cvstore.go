// Package cvstore persists per-client SCAFFOLD control variates across
// rounds. State is keyed by client identifier; repeated sampling of the
// same client reads back its own prior state and never another
// client's.
package cvstore

import (
	"context"

	"github.com/fedbench/fedsim/pkg/fl"
)

// Store is a keyed identifier -> control-variate store.
type Store interface {
	// Load returns the stored variate for the client, or ok=false when
	// the client has no prior state.
	Load(ctx context.Context, clientID int) (cv fl.Parameters, ok bool, err error)
	Save(ctx context.Context, clientID int, cv fl.Parameters) error
}

// Package registry records which attestation nullifiers have been consumed.
//
// It is the only shared mutable state of the engine. Every implementation
// must make TryConsume linearizable: among any number of concurrent callers
// racing on the same nullifier exactly one observes true.
package registry

import (
	"context"
	"time"

	"github.com/trufnetwork/wageproof/canonical"
)

// Registry is an atomic nullifier store.
type Registry interface {
	// TryConsume marks nullifier as consumed. It returns true only for the
	// single call that performed the transition. A false return is a hard
	// rejection, never a transient condition.
	TryConsume(ctx context.Context, nullifier canonical.Digest) (bool, error)

	// IsUsed reports whether nullifier has been consumed. It never writes.
	IsUsed(ctx context.Context, nullifier canonical.Digest) (bool, error)

	// ConsumedAt returns when nullifier was consumed, or false when it has not been.
	ConsumedAt(ctx context.Context, nullifier canonical.Digest) (time.Time, bool, error)
}

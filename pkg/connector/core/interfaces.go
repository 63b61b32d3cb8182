// Package core defines the capability interfaces every connector implements.
// Dispatch over source and destination kinds is static: the config layer
// builds a concrete connector once and the job only ever sees these
// interfaces.
package core

import (
	"context"

	"github.com/dunesync/dunesync/pkg/frame"
)

// Source fetches one whole result set per job invocation.
type Source interface {
	// Validate checks the source configuration eagerly, before any fetch.
	Validate(ctx context.Context) error
	// Fetch retrieves the full result set as a typed frame.
	Fetch(ctx context.Context) (*frame.Frame, error)
}

// Destination persists one frame per job invocation.
type Destination interface {
	// Validate checks the destination configuration eagerly, before any save.
	Validate(ctx context.Context) error
	// Save writes the frame and returns the number of affected rows.
	Save(ctx context.Context, f *frame.Frame) (int64, error)
}

// Closer is implemented by connectors that hold connections or pools.
type Closer interface {
	Close()
}

// Package blob is where save files live. It re-exports the blob contract and
// opens the configured backend.
package blob

import "shelfcore/internal/blob/core"

type (
	// Driver names a backend.
	Driver = core.Driver
	// PutOptions describes a write.
	PutOptions = core.PutOptions
	// Info describes a stored blob.
	Info = core.Info
	// Store is implemented by every backend.
	Store = core.Store
)

// Drivers accepted by Open.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Errors shared by all backends.
var (
	ErrNotFound   = core.ErrNotFound
	ErrExists     = core.ErrExists
	ErrInvalidKey = core.ErrInvalidKey
)

package export

import (
	"context"
	"time"
)

// TokenValidator verifies a bearer credential and extracts the caller.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

// Prober checks that the report page exists for the caller before any
// browser is launched.
type Prober interface {
	Probe(ctx context.Context, url string, cookie string) error
}

// SessionRunner owns the lifecycle of one ephemeral browser per call. Run
// launches the engine, injects the cookie, invokes fn with a page-scoped
// context, and tears the engine down on every exit path.
type SessionRunner interface {
	Run(ctx context.Context, cookie string, fn func(pageCtx context.Context) error) error
}

// Navigator loads the target URL inside a session's page context and blocks
// until network activity settles or the timeout elapses.
type Navigator interface {
	Navigate(pageCtx context.Context, url string, timeout time.Duration) error
}

// LayoutApplier mutates the loaded page per the report type's profile.
type LayoutApplier interface {
	Apply(pageCtx context.Context, profile LayoutProfile) error
}

// Capturer renders the mutated page into PDF bytes.
type Capturer interface {
	Capture(pageCtx context.Context, profile LayoutProfile) ([]byte, error)
}

// BlobStore writes an artifact and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes export events downstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) (string, error)
}

// AuditStore persists one row per finished export.
type AuditStore interface {
	RecordExport(ctx context.Context, rec AuditRecord) error
}

// ArchiveQueue hands finished exports to the background archive workers.
type ArchiveQueue interface {
	Enqueue(ctx context.Context, task ArchiveTask) error
}

// Hasher computes artifact digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces audit record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

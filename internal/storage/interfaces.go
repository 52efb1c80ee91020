package storage

import (
	"context"

	"pumpwatch/internal/domain"
)

// Sink persists a full record-store snapshot to one durable backend.
// Implementations must never leave a partially written snapshot visible to
// readers of the durable store (write-then-rename for files, transactional
// or idempotent upserts for databases). A failed Persist is reported to the
// caller and must leave the sink usable for the next cycle.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Persist writes the snapshot. It is called from the persister's
	// cadence loop and once more at shutdown for the final flush.
	Persist(ctx context.Context, snap *domain.Snapshot) error

	// Close releases backend resources.
	Close() error
}

// StatsSink optionally persists session statistics alongside snapshot data.
// Sinks that do not care about statistics simply do not implement it.
type StatsSink interface {
	PersistStats(ctx context.Context, report domain.StatsReport) error
}

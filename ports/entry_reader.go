package ports

import (
	"context"

	"supptrace/domain/core"
	"supptrace/domain/entry"
)

// EntryReader is the read-only boundary to the Daily Entry Store.
// The engine never writes entries; check-in and import pipelines own them.
type EntryReader interface {
	// GetEntries returns the user's entries inside the range, ascending by date
	GetEntries(ctx context.Context, userID core.UserID, dateRange core.DateRange) ([]entry.DailyEntry, error)

	// CountEntriesSince returns how many check-ins the user has recorded at or
	// after the given timestamp (drives the confirmation gate)
	CountEntriesSince(ctx context.Context, userID core.UserID, since core.Timestamp) (int, error)
}

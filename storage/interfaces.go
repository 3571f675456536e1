package storage

import "marketplace-monitor/models"

// SnapshotStore is the persistence boundary of the monitoring cycle: the
// previous snapshot comes out of it at cycle start and the current snapshot
// goes back in after diffing.
type SnapshotStore interface {
	// LoadPrevious returns the last persisted snapshot, or an empty
	// snapshot when none has been stored yet.
	LoadPrevious() (*models.Snapshot, error)
	// SaveCurrent replaces the stored snapshot with the given one.
	SaveCurrent(*models.Snapshot) error
	// AppendHistory records the snapshot as a discrete timestamped unit;
	// retention pruning is the store's concern.
	AppendHistory(*models.Snapshot) error
}

// SnapshotArchiver is an optional secondary sink for per-cycle listing rows.
type SnapshotArchiver interface {
	Archive(*models.Snapshot) error
	Close() error
}

// SnapshotExporter writes a human-inspectable copy of a snapshot.
type SnapshotExporter interface {
	Export(*models.Snapshot) error
}

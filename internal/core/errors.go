package core

import "errors"

var (
	// ErrSlotTaken means another writer claimed the same chain slot first.
	// The caller should re-read the chain tip and retry the claim.
	ErrSlotTaken = errors.New("chain slot already claimed")

	// ErrBackupProtected means deletion was refused because the backup is
	// immutable, under legal hold, or inside a retention-until lock.
	ErrBackupProtected = errors.New("backup is protected from deletion")

	// ErrHasDependents means deletion was refused because later
	// incrementals in the chain still depend on this backup.
	ErrHasDependents = errors.New("backup has dependent incrementals")

	// ErrBackendInUse means a storage backend still holds backups.
	ErrBackendInUse = errors.New("storage backend still referenced by backups")

	// ErrNotCancellable means cancellation was refused because the backup
	// already reached a terminal status.
	ErrNotCancellable = errors.New("backup is not in a cancellable status")
)

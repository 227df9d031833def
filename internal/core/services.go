package core

import (
	temporalclient "go.temporal.io/sdk/client"

	"github.com/holtet/backstack/internal/storage"
)

type Services struct {
	Backup         *BackupService
	Schedule       *ScheduleService
	StorageBackend *StorageBackendService
	Retention      *RetentionService
	Integrity      *IntegrityService
}

func NewServices(db DB, tc temporalclient.Client, resolver storage.Resolver) *Services {
	backup := NewBackupService(db, tc)
	return &Services{
		Backup:         backup,
		Schedule:       NewScheduleService(db, tc),
		StorageBackend: NewStorageBackendService(db, resolver),
		Retention:      NewRetentionService(backup),
		Integrity:      NewIntegrityService(backup),
	}
}

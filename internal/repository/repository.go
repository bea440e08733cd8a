package repository

import (
	"context"

	"presale/internal/models"
)

// Repository is the optional run journal. Implementations tolerate a nil
// receiver so the service runs without a database.
type Repository interface {
	InsertIngestRun(ctx context.Context, run *models.IngestRun) error
	FinishIngestRun(ctx context.Context, run *models.IngestRun) error
	ListIngestRuns(ctx context.Context, params ListIngestRunsParams) ([]models.IngestRun, error)

	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncState(ctx context.Context, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)

	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

type ListIngestRunsParams struct {
	Limit       int
	Offset      int
	Destination *string
	Status      *string
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

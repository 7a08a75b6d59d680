package edits_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apartment-locator/internal/database"
	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

const (
	tenantA  = "tenant-a"
	tenantB  = "tenant-b"
	locator  = "locator-1"
	outsider = "locator-9"
	unitID   = "unit-1"
)

var rentKey = fields.Key{Field: fields.UnitRent, TargetID: unitID}

type fixture struct {
	ctx   context.Context
	store *database.MemoryStore
	own   *database.StaticOwnership
	svc   *edits.Service
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := database.NewMemoryStore()
	own := database.NewStaticOwnership()

	require.NoError(t, own.AddMember(ctx, models.TenantMember{UserID: locator, TenantID: tenantA}))
	require.NoError(t, own.AddMember(ctx, models.TenantMember{UserID: outsider, TenantID: tenantB}))
	for _, owner := range []models.EntityOwner{
		{TargetType: fields.TargetUnit, TargetID: unitID, TenantID: tenantA},
		{TargetType: fields.TargetBuilding, TargetID: "building-1", TenantID: tenantA},
		{TargetType: fields.TargetClient, TargetID: "client-1", TenantID: tenantA},
	} {
		require.NoError(t, own.AssignEntity(ctx, owner))
	}

	return &fixture{
		ctx:   ctx,
		store: store,
		own:   own,
		svc:   edits.NewService(store, own, zap.NewNop()),
	}
}

// editRent records a locator correction of rent on unit-1 against scraped
func (f *fixture) editRent(t *testing.T, scraped, newValue float64) *models.FieldEdit {
	t.Helper()
	rec, err := f.svc.CreateEdit(f.ctx, edits.CreateEditRequest{
		Field:        fields.UnitRent,
		TargetID:     unitID,
		NewValue:     fields.Number(newValue),
		EditedBy:     locator,
		ScrapedValue: fields.Number(scraped),
	})
	require.NoError(t, err)
	return rec
}

func (f *fixture) observeRent(t *testing.T, scraped float64) *edits.Detection {
	t.Helper()
	d, err := f.svc.Observe(f.ctx, rentKey, fields.Number(scraped))
	require.NoError(t, err)
	return d
}

// failingStore fails Append inside transactions after the flag update has been applied
type failingStore struct {
	edits.Store
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Append(context.Context, edits.Record) (*models.FieldEdit, error) {
	return nil, edits.NewPersistenceError("append", errDiskFull)
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(tx edits.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx edits.Store) error {
		return fn(&failingStore{Store: tx})
	})
}

// countingStore counts LastRecordsFor calls
type countingStore struct {
	edits.Store
	lastRecordsCalls int
}

func (s *countingStore) LastRecordsFor(ctx context.Context, targetType fields.TargetType, targetID string) (map[string]models.FieldEdit, error) {
	s.lastRecordsCalls++
	return s.Store.LastRecordsFor(ctx, targetType, targetID)
}

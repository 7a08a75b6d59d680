package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

func TestMemoryStore_OrdersRecordsWithFrozenClock(t *testing.T) {
	frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return frozen })
	ctx := context.Background()
	key := fields.Key{Field: fields.UnitRent, TargetID: "unit-1"}

	for i := 1; i <= 3; i++ {
		_, err := store.Append(ctx, edits.Record{Key: key, NewValue: fields.Number(float64(i)), Source: models.EditSourceLocator})
		require.NoError(t, err)
	}

	history, err := store.HistoryFor(ctx, key)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].NewValue.Equal(fields.Number(3)))
	assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt))
	assert.True(t, history[1].CreatedAt.After(history[2].CreatedAt))

	latest, err := store.LatestFor(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, history[0].ID, latest.ID)
}

func TestMemoryStore_LatestForEmptyKey(t *testing.T) {
	store := NewMemoryStore()
	latest, err := store.LatestFor(context.Background(), fields.Key{Field: fields.UnitRent, TargetID: "nope"})
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := fields.Key{Field: fields.BuildingName, TargetID: "building-1"}
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx edits.Store) error {
		if _, err := tx.Append(ctx, edits.Record{Key: key, NewValue: fields.Text("The Aster"), Source: models.EditSourceAdmin}); err != nil {
			return err
		}
		inside, err := tx.HistoryFor(ctx, key)
		require.NoError(t, err)
		assert.Len(t, inside, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	history, err := store.HistoryFor(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStore_UnresolvedConflictsOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var recs []*models.FieldEdit
	for _, f := range []fields.UnitField{fields.UnitRent, fields.UnitDeposit, fields.UnitFloor} {
		rec, err := store.Append(ctx, edits.Record{
			Key:      fields.Key{Field: f, TargetID: "unit-1"},
			NewValue: fields.Number(1),
			Source:   models.EditSourceLocator,
		})
		require.NoError(t, err)
		recs = append(recs, rec)
	}
	// flag in reverse order; the queue still follows creation order
	for i := len(recs) - 1; i >= 0; i-- {
		_, err := store.ApplyFlagUpdate(ctx, edits.RaiseConflict(recs[i], fields.Number(2)))
		require.NoError(t, err)
	}

	open, err := store.UnresolvedConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	for i := range recs {
		assert.Equal(t, recs[i].ID, open[i].ID)
	}
}

func TestMemoryStore_ApplyFlagUpdateUnknownEdit(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.ApplyFlagUpdate(context.Background(), edits.FlagUpdate{EditID: 5})
	require.ErrorIs(t, err, edits.ErrNotFound)
}

func TestStaticOwnership(t *testing.T) {
	own := NewStaticOwnership()
	ctx := context.Background()
	require.NoError(t, own.AssignEntity(ctx, models.EntityOwner{TargetType: fields.TargetUnit, TargetID: "u-1", TenantID: "t-1"}))
	require.NoError(t, own.AddMember(ctx, models.TenantMember{UserID: "alex", TenantID: "t-1"}))

	tenant, err := own.TenantOfEntity(ctx, fields.TargetUnit, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", tenant)

	_, err = own.TenantOfEntity(ctx, fields.TargetBuilding, "u-1")
	require.ErrorIs(t, err, edits.ErrNotFound)

	member, err := own.MemberOf(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, models.RoleLocator, member.Role, "members without a role act as locators")

	_, err = own.MemberOf(ctx, "sam")
	require.ErrorIs(t, err, edits.ErrNotFound)
}

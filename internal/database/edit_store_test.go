package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

var editRowColumns = []string{
	"id", "target_type", "target_id", "field_name", "previous_value", "new_value", "source", "edited_by",
	"has_conflict", "conflict_value", "acknowledged_value", "conflict_detected_at", "flag_version", "created_at",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock, gdb
}

func TestGormStore_GetNotFound(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	mock.ExpectQuery("SELECT \\* FROM `field_edits` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows(editRowColumns))

	_, err := store.Get(context.Background(), 42)
	require.ErrorIs(t, err, edits.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetDecodesValues(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(editRowColumns).AddRow(
		7, "unit", "unit-1", "rent", "1500", "1600", "locator", "locator-1",
		true, "1550", nil, now, 1, now,
	)
	mock.ExpectQuery("SELECT \\* FROM `field_edits`").WillReturnRows(rows)

	rec, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, fields.TargetUnit, rec.TargetType)
	assert.True(t, rec.PreviousValue.Equal(fields.Number(1500)))
	assert.True(t, rec.NewValue.Equal(fields.Number(1600)))
	assert.True(t, rec.HasConflict)
	assert.True(t, rec.ConflictValue.Equal(fields.Number(1550)))
	assert.True(t, rec.AcknowledgedValue.IsNull())
	require.NotNil(t, rec.EditedBy)
	assert.Equal(t, "locator-1", *rec.EditedBy)
	assert.Equal(t, int64(1), rec.FlagVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AppendWrapsDriverErrors(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	mock.ExpectExec("INSERT INTO `field_edits`").WillReturnError(errors.New("connection refused"))

	editor := "locator-1"
	_, err := store.Append(context.Background(), edits.Record{
		Key:           fields.Key{Field: fields.UnitRent, TargetID: "unit-1"},
		PreviousValue: fields.Number(1500),
		NewValue:      fields.Number(1600),
		Source:        "locator",
		EditedBy:      &editor,
	})
	require.ErrorIs(t, err, edits.ErrPersistence)
	var pe *edits.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "append", pe.Op)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AppendAssignsID(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	mock.ExpectExec("INSERT INTO `field_edits`").WillReturnResult(sqlmock.NewResult(11, 1))

	rec, err := store.Append(context.Background(), edits.Record{
		Key:      fields.Key{Field: fields.BuildingPetPolicy, TargetID: "building-1"},
		NewValue: fields.Text("cats only"),
		Source:   "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), rec.ID)
	assert.Equal(t, "pet_policy", rec.FieldName)
	assert.False(t, rec.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_LastRecordsForIsOneQuery(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(editRowColumns).
		AddRow(3, "unit", "unit-1", "rent", "1500", "1600", "locator", "locator-1", false, nil, nil, nil, 0, now).
		AddRow(9, "unit", "unit-1", "deposit", "500", "750", "locator", "locator-1", false, nil, nil, nil, 0, now).
		AddRow(12, "unit", "unit-1", "floor_plan", `"2B1B"`, `"2B2B"`, "admin", "admin-1", false, nil, nil, nil, 0, now)

	mock.ExpectQuery(`ROW_NUMBER\(\) OVER \(PARTITION BY field_name`).
		WithArgs("unit", "unit-1").
		WillReturnRows(rows)

	got, err := store.LastRecordsFor(context.Background(), fields.TargetUnit, "unit-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(9), got["deposit"].ID)
	assert.True(t, got["floor_plan"].NewValue.Equal(fields.Text("2B2B")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ApplyFlagUpdateLostRace(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `field_edits` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `field_edits`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := store.ApplyFlagUpdate(context.Background(), edits.FlagUpdate{
		EditID:          7,
		ExpectedVersion: 2,
		HasConflict:     true,
		ConflictValue:   fields.Number(1550),
		At:              time.Now(),
	})
	require.ErrorIs(t, err, edits.ErrConflictState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ApplyFlagUpdateMissingRecord(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `field_edits` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `field_edits`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := store.ApplyFlagUpdate(context.Background(), edits.FlagUpdate{EditID: 99, At: time.Now()})
	require.ErrorIs(t, err, edits.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ApplyFlagUpdateRecordsObservation(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	store := NewGormStore(gdb)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `field_edits` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `field_conflict_observations`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM `field_edits`").WillReturnRows(sqlmock.NewRows(editRowColumns).AddRow(
		7, "unit", "unit-1", "rent", "1500", "1600", "locator", "locator-1",
		true, "1550", nil, now, 3, now,
	))
	mock.ExpectCommit()

	rec, err := store.ApplyFlagUpdate(context.Background(), edits.FlagUpdate{
		EditID:          7,
		ExpectedVersion: 2,
		HasConflict:     true,
		ConflictValue:   fields.Number(1550),
		Observation:     "flagged",
		ObservedValue:   fields.Number(1550),
		At:              now,
	})
	require.NoError(t, err)
	assert.True(t, rec.HasConflict)
	assert.Equal(t, int64(3), rec.FlagVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOwnership_UnknownUser(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	own := NewGormOwnership(gdb)

	mock.ExpectQuery("SELECT \\* FROM `tenant_members`").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "tenant_id", "role"}))

	_, err := own.MemberOf(context.Background(), "ghost")
	require.ErrorIs(t, err, edits.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOwnership_MemberOfReturnsRole(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	own := NewGormOwnership(gdb)

	mock.ExpectQuery("SELECT \\* FROM `tenant_members` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "tenant_id", "role"}).
			AddRow("ops-1", "tenant-a", "admin"))

	member, err := own.MemberOf(context.Background(), "ops-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", member.TenantID)
	assert.Equal(t, models.EditSourceAdmin, member.EditSource())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOwnership_TenantOfEntity(t *testing.T) {
	db, mock, gdb := setupMockDB(t)
	defer db.Close()
	own := NewGormOwnership(gdb)

	mock.ExpectQuery("SELECT \\* FROM `entity_owners` WHERE target_type = \\? AND target_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"target_type", "target_id", "tenant_id"}).
			AddRow("building", "building-1", "tenant-a"))

	tenant, err := own.TenantOfEntity(context.Background(), fields.TargetBuilding, "building-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenant)
	require.NoError(t, mock.ExpectationsWereMet())
}

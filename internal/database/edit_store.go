package database

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

const editColumns = "id, target_type, target_id, field_name, previous_value, new_value, source, edited_by, " +
	"has_conflict, conflict_value, acknowledged_value, conflict_detected_at, flag_version, created_at"

// Latest record per field of one entity, in one round trip.
// ROW_NUMBER() needs MySQL 8 or PostgreSQL.
const lastRecordsQuery = `SELECT ` + editColumns + ` FROM (
	SELECT ` + editColumns + `,
		ROW_NUMBER() OVER (PARTITION BY field_name ORDER BY created_at DESC, id DESC) AS rn
	FROM field_edits
	WHERE target_type = ? AND target_id = ?
) ranked
WHERE rn = 1`

// GormStore is the edit log on MySQL or PostgreSQL
type GormStore struct {
	db *gorm.DB
}

var _ edits.Store = (*GormStore)(nil)

// NewGormStore creates a store over db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, rec edits.Record) (*models.FieldEdit, error) {
	row := models.FieldEdit{
		TargetType:    rec.Key.Field.Target(),
		TargetID:      rec.Key.TargetID,
		FieldName:     rec.Key.Field.Name(),
		PreviousValue: rec.PreviousValue,
		NewValue:      rec.NewValue,
		Source:        rec.Source,
		EditedBy:      rec.EditedBy,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, edits.NewPersistenceError("append", err)
	}
	return &row, nil
}

func (s *GormStore) Get(ctx context.Context, id int64) (*models.FieldEdit, error) {
	var row models.FieldEdit
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &edits.NotFoundError{Resource: "field edit", ID: strconv.FormatInt(id, 10)}
	}
	if err != nil {
		return nil, edits.NewPersistenceError("get", err)
	}
	return &row, nil
}

func (s *GormStore) keyScope(ctx context.Context, key fields.Key) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND field_name = ?", key.Field.Target(), key.TargetID, key.Field.Name())
}

func (s *GormStore) LatestFor(ctx context.Context, key fields.Key) (*models.FieldEdit, error) {
	var rows []models.FieldEdit
	err := s.keyScope(ctx, key).Order("created_at DESC, id DESC").Limit(1).Find(&rows).Error
	if err != nil {
		return nil, edits.NewPersistenceError("latest", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *GormStore) HistoryFor(ctx context.Context, key fields.Key) ([]models.FieldEdit, error) {
	var rows []models.FieldEdit
	if err := s.keyScope(ctx, key).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, edits.NewPersistenceError("history", err)
	}
	return rows, nil
}

func (s *GormStore) LastRecordsFor(ctx context.Context, targetType fields.TargetType, targetID string) (map[string]models.FieldEdit, error) {
	var rows []models.FieldEdit
	if err := s.db.WithContext(ctx).Raw(lastRecordsQuery, targetType, targetID).Scan(&rows).Error; err != nil {
		return nil, edits.NewPersistenceError("last records", err)
	}
	out := make(map[string]models.FieldEdit, len(rows))
	for _, row := range rows {
		out[row.FieldName] = row
	}
	return out, nil
}

func (s *GormStore) UnresolvedConflicts(ctx context.Context) ([]models.FieldEdit, error) {
	var rows []models.FieldEdit
	err := s.db.WithContext(ctx).
		Where("has_conflict = ?", true).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, edits.NewPersistenceError("unresolved conflicts", err)
	}
	return rows, nil
}

// ApplyFlagUpdate moves only the conflict columns. The update matches on
// flag_version, so two writers holding the same version cannot both succeed.
func (s *GormStore) ApplyFlagUpdate(ctx context.Context, u edits.FlagUpdate) (*models.FieldEdit, error) {
	var updated models.FieldEdit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changes := map[string]interface{}{
			"has_conflict":   u.HasConflict,
			"conflict_value": u.ConflictValue,
			"flag_version":   gorm.Expr("flag_version + 1"),
		}
		if u.HasConflict {
			changes["conflict_detected_at"] = u.At
		} else {
			changes["conflict_detected_at"] = nil
		}
		if !u.AcknowledgedValue.IsNull() {
			changes["acknowledged_value"] = u.AcknowledgedValue
		}

		result := tx.Model(&models.FieldEdit{}).
			Where("id = ? AND flag_version = ?", u.EditID, u.ExpectedVersion).
			Updates(changes)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.FieldEdit{}).Where("id = ?", u.EditID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return &edits.NotFoundError{Resource: "field edit", ID: strconv.FormatInt(u.EditID, 10)}
			}
			return &edits.ConflictStateError{EditID: u.EditID, Reason: "conflict flags changed concurrently"}
		}

		if u.Observation != "" && !u.ObservedValue.IsNull() {
			obs := models.ConflictObservation{
				EditID:     u.EditID,
				Value:      u.ObservedValue,
				Outcome:    u.Observation,
				ObservedAt: u.At,
			}
			if err := tx.Create(&obs).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", u.EditID).First(&updated).Error
	})
	if err != nil {
		return nil, edits.NewPersistenceError("flag update", err)
	}
	return &updated, nil
}

func (s *GormStore) ConflictTrail(ctx context.Context, editID int64) ([]models.ConflictObservation, error) {
	var rows []models.ConflictObservation
	err := s.db.WithContext(ctx).
		Where("edit_id = ?", editID).
		Order("observed_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, edits.NewPersistenceError("conflict trail", err)
	}
	return rows, nil
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(tx edits.Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
	return edits.NewPersistenceError("transaction", err)
}

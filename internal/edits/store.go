// Package edits implements the field-edit overlay: an append-only log of
// human corrections layered over scraped values, conflict detection when the
// scraper disagrees with a correction, and human resolution of those conflicts.
package edits

import (
	"context"
	"time"

	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// Record is an append request. The store assigns ID and CreatedAt.
type Record struct {
	Key           fields.Key
	PreviousValue fields.Value
	NewValue      fields.Value
	Source        models.EditSource
	EditedBy      *string
}

// FlagUpdate is the only mutation an existing record accepts. It is applied
// as a compare-and-set: it succeeds only while the record's flag version
// still equals ExpectedVersion.
type FlagUpdate struct {
	EditID          int64
	ExpectedVersion int64
	HasConflict     bool
	ConflictValue   fields.Value
	// AcknowledgedValue, when non-null, replaces acknowledged_value
	AcknowledgedValue fields.Value
	// Observation, when set, appends ObservedValue to the conflict trail in the same transaction
	Observation   string
	ObservedValue fields.Value
	At            time.Time
}

// RaiseConflict flags rec with a competing scraped value
func RaiseConflict(rec *models.FieldEdit, scraped fields.Value) FlagUpdate {
	outcome := models.ObservationFlagged
	if rec.HasConflict {
		outcome = models.ObservationReflagged
	}
	return FlagUpdate{
		EditID:          rec.ID,
		ExpectedVersion: rec.FlagVersion,
		HasConflict:     true,
		ConflictValue:   scraped,
		Observation:     outcome,
		ObservedValue:   scraped,
		At:              time.Now(),
	}
}

// ClearConflict drops the flag without recording an acknowledgement
func ClearConflict(rec *models.FieldEdit) FlagUpdate {
	return FlagUpdate{
		EditID:          rec.ID,
		ExpectedVersion: rec.FlagVersion,
		Observation:     models.ObservationCleared,
		ObservedValue:   rec.ConflictValue,
		At:              time.Now(),
	}
}

// AcknowledgeConflict drops the flag and remembers the dismissed scraped value,
// so the same value does not re-flag the record on the next refresh.
func AcknowledgeConflict(rec *models.FieldEdit) FlagUpdate {
	u := ClearConflict(rec)
	u.AcknowledgedValue = rec.ConflictValue
	return u
}

// Store is the durable append-only edit log.
type Store interface {
	// Append persists a new record, assigning its ID and ordering timestamp.
	Append(ctx context.Context, rec Record) (*models.FieldEdit, error)
	// Get returns one record or a *NotFoundError.
	Get(ctx context.Context, id int64) (*models.FieldEdit, error)
	// LatestFor returns the most recent record for key, or nil when the key has no history.
	LatestFor(ctx context.Context, key fields.Key) (*models.FieldEdit, error)
	// HistoryFor returns every record for key, most recent first.
	HistoryFor(ctx context.Context, key fields.Key) ([]models.FieldEdit, error)
	// LastRecordsFor returns the most recent record per field name of one entity.
	LastRecordsFor(ctx context.Context, targetType fields.TargetType, targetID string) (map[string]models.FieldEdit, error)
	// UnresolvedConflicts returns every flagged record, ordered by creation.
	UnresolvedConflicts(ctx context.Context) ([]models.FieldEdit, error)
	// ApplyFlagUpdate applies u as a compare-and-set and returns the updated record.
	// A lost race fails with *ConflictStateError.
	ApplyFlagUpdate(ctx context.Context, u FlagUpdate) (*models.FieldEdit, error)
	// ConflictTrail returns the scraped values observed against one record, oldest first.
	ConflictTrail(ctx context.Context, editID int64) ([]models.ConflictObservation, error)
	// WithinTx runs fn against a transactional view of the store; any error rolls back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// KeyOf rebuilds the typed key of a stored record
func KeyOf(rec *models.FieldEdit) (fields.Key, error) {
	f, err := fields.Parse(rec.TargetType, rec.FieldName)
	if err != nil {
		return fields.Key{}, err
	}
	return fields.Key{Field: f, TargetID: rec.TargetID}, nil
}

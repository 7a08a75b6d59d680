package models

import (
	"time"

	"apartment-locator/internal/fields"
)

// EditSource identifies who produced an edit record
type EditSource string

const (
	EditSourceScraper EditSource = "scraper"
	EditSourceLocator EditSource = "locator"
	EditSourceAdmin   EditSource = "admin"
)

// IsHuman reports whether the record is a human correction
func (s EditSource) IsHuman() bool {
	return s == EditSourceLocator || s == EditSourceAdmin
}

// FieldEdit is one append-only field edit event.
// PreviousValue, NewValue, Source, EditedBy and CreatedAt never change after
// insert; only the conflict flag columns move, through FlagVersion-guarded updates.
type FieldEdit struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetType    fields.TargetType `gorm:"type:varchar(20);not null;index:idx_field_edit_key,priority:1" json:"target_type"`
	TargetID      string            `gorm:"type:varchar(64);not null;index:idx_field_edit_key,priority:2" json:"target_id"`
	FieldName     string            `gorm:"type:varchar(64);not null;index:idx_field_edit_key,priority:3" json:"field_name"`
	PreviousValue fields.Value      `gorm:"type:json" json:"previous_value"`
	NewValue      fields.Value      `gorm:"type:json;not null" json:"new_value"`
	Source        EditSource        `gorm:"type:varchar(20);not null" json:"source"`
	EditedBy      *string           `gorm:"type:varchar(64)" json:"edited_by"`

	// Conflict flags
	HasConflict        bool         `gorm:"not null;default:false;index" json:"has_conflict"`
	ConflictValue      fields.Value `gorm:"type:json" json:"conflict_value"`
	AcknowledgedValue  fields.Value `gorm:"type:json" json:"acknowledged_value"`
	ConflictDetectedAt *time.Time   `json:"conflict_detected_at,omitempty"`
	FlagVersion        int64        `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `gorm:"not null;index:idx_field_edit_key,priority:4,sort:desc" json:"created_at"`
}

// TableName specifies the table name
func (FieldEdit) TableName() string {
	return "field_edits"
}

// ConflictObservation keeps every scraped value that flagged or re-flagged an
// edit, so overwritten conflict values stay auditable.
type ConflictObservation struct {
	ID         int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	EditID     int64        `gorm:"not null;index" json:"edit_id"`
	Value      fields.Value `gorm:"type:json;not null" json:"value"`
	Outcome    string       `gorm:"type:varchar(20);not null" json:"outcome"`
	ObservedAt time.Time    `gorm:"not null" json:"observed_at"`
}

// TableName specifies the table name
func (ConflictObservation) TableName() string {
	return "field_conflict_observations"
}

// Observation outcomes
const (
	ObservationFlagged   = "flagged"
	ObservationReflagged = "reflagged"
	ObservationCleared   = "cleared"
)

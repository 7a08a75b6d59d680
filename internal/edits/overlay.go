package edits

import (
	"context"

	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// FieldWithEdit is the overlay result for one field
type FieldWithEdit struct {
	FieldName     string            `json:"field_name"`
	Label         string            `json:"label"`
	CurrentValue  fields.Value      `json:"current_value"`
	ScrapedValue  fields.Value      `json:"scraped_value"`
	LastEdit      *models.FieldEdit `json:"last_edit"`
	HasConflict   bool              `json:"has_conflict"`
	ConflictValue fields.Value      `json:"conflict_value"`
	Display       string            `json:"display"`
}

// OverlayResolver computes the current value of a field from the scraped
// value and the edit log. It never writes.
type OverlayResolver struct {
	store Store
}

// NewOverlayResolver creates a resolver over store
func NewOverlayResolver(store Store) *OverlayResolver {
	return &OverlayResolver{store: store}
}

// Resolve returns the overlay for one field
func (r *OverlayResolver) Resolve(ctx context.Context, key fields.Key, scraped fields.Value) (*FieldWithEdit, error) {
	last, err := r.store.LatestFor(ctx, key)
	if err != nil {
		return nil, err
	}
	result := overlay(key.Field, scraped, last)
	return &result, nil
}

// overlay applies precedence for one field: the latest record's new value,
// flagged or not, or the scraped value when the field has no history.
func overlay(f fields.Field, scraped fields.Value, last *models.FieldEdit) FieldWithEdit {
	out := FieldWithEdit{
		FieldName:    f.Name(),
		Label:        f.Spec().Label,
		CurrentValue: scraped,
		ScrapedValue: scraped,
	}
	if last != nil {
		rec := *last
		out.LastEdit = &rec
		out.HasConflict = rec.HasConflict
		if rec.HasConflict {
			out.ConflictValue = rec.ConflictValue
		}
		out.CurrentValue = rec.NewValue
	}
	out.Display = fields.Format(f, out.CurrentValue)
	return out
}

package edits

import (
	"context"

	"go.uber.org/zap"

	"apartment-locator/internal/fields"
)

// Snapshot carries the live scraped values of one entity, keyed by field name.
// The caller loads it from the listing store; this package never does.
type Snapshot map[string]fields.Value

// Aggregator resolves every edited field of one entity in a single store call
type Aggregator struct {
	store  Store
	logger *zap.Logger
}

// NewAggregator creates an aggregator over store
func NewAggregator(store Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// Aggregate returns the overlay for every field of the entity that has edit
// history. Fields that were never edited are absent from the result and equal
// their scraped baseline.
func (a *Aggregator) Aggregate(ctx context.Context, targetType fields.TargetType, targetID string, snapshot Snapshot) (map[string]FieldWithEdit, error) {
	if !targetType.IsValid() {
		return nil, &ValidationError{Field: "target_type", Message: "unknown target type " + string(targetType)}
	}
	last, err := a.store.LastRecordsFor(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]FieldWithEdit, len(last))
	for name, rec := range last {
		f, err := fields.Parse(targetType, name)
		if err != nil {
			// Rows for fields retired from the catalog stay in the log but are not displayed.
			a.logger.Debug("skipping edit for unknown field",
				zap.String("target_type", string(targetType)),
				zap.String("target_id", targetID),
				zap.String("field_name", name))
			continue
		}
		rec := rec
		out[name] = overlay(f, snapshot[name], &rec)
	}
	return out, nil
}

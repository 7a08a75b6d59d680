package edits

import (
	"context"

	"go.uber.org/zap"

	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// Outcome describes what a scraped observation did to the edit log
type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"     // scraper reported no value
	OutcomeNoEdit      Outcome = "no_edit"     // nothing overrides the field
	OutcomeUnchanged   Outcome = "unchanged"   // same value as the correction or the pending conflict
	OutcomeReconfirmed Outcome = "reconfirmed" // scraper still reports the value the correction was made against
	OutcomeFlagged     Outcome = "flagged"
	OutcomeReflagged   Outcome = "reflagged"
	OutcomeConverged   Outcome = "converged" // scraper caught up with the correction
	OutcomeReverted    Outcome = "reverted"  // scraper went back to the acknowledged world value
)

// Detection is the result of one observation
type Detection struct {
	Outcome Outcome           `json:"outcome"`
	Edit    *models.FieldEdit `json:"edit,omitempty"`
}

// ConflictDetector decides, per scraped field, whether a refreshed value may
// become the baseline or must wait for a human decision.
type ConflictDetector struct {
	store  Store
	logger *zap.Logger
}

// NewConflictDetector creates a detector over store
func NewConflictDetector(store Store, logger *zap.Logger) *ConflictDetector {
	return &ConflictDetector{store: store, logger: logger}
}

// Observe compares one freshly scraped value against the edit log for key.
// Flag changes go through a compare-and-set; a lost race surfaces as a
// *ConflictStateError and is not retried here.
func (d *ConflictDetector) Observe(ctx context.Context, key fields.Key, scraped fields.Value) (*Detection, error) {
	if !key.Field.Target().Scraped() {
		return nil, &ValidationError{Field: "target_type", Message: string(key.Field.Target()) + " entities are not scraped"}
	}
	if scraped.IsNull() {
		// An empty extraction may be a blocked or broken page; never treat it as a change.
		return &Detection{Outcome: OutcomeIgnored}, nil
	}

	history, err := d.store.HistoryFor(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return &Detection{Outcome: OutcomeNoEdit}, nil
	}
	latest := &history[0]

	if scraped.Equal(latest.NewValue) {
		if !latest.HasConflict {
			return &Detection{Outcome: OutcomeUnchanged, Edit: latest}, nil
		}
		u := ClearConflict(latest)
		u.ObservedValue = scraped
		return d.apply(ctx, key, u, OutcomeConverged)
	}

	world := knownWorldValue(history)
	if latest.HasConflict {
		switch {
		case scraped.Equal(latest.ConflictValue):
			return &Detection{Outcome: OutcomeUnchanged, Edit: latest}, nil
		case scraped.Equal(world):
			u := ClearConflict(latest)
			u.ObservedValue = scraped
			return d.apply(ctx, key, u, OutcomeReverted)
		}
		return d.apply(ctx, key, RaiseConflict(latest, scraped), OutcomeReflagged)
	}

	if scraped.Equal(world) {
		return &Detection{Outcome: OutcomeReconfirmed, Edit: latest}, nil
	}
	return d.apply(ctx, key, RaiseConflict(latest, scraped), OutcomeFlagged)
}

func (d *ConflictDetector) apply(ctx context.Context, key fields.Key, u FlagUpdate, outcome Outcome) (*Detection, error) {
	updated, err := d.store.ApplyFlagUpdate(ctx, u)
	if err != nil {
		d.logger.Warn("conflict flag update failed",
			zap.String("key", key.String()),
			zap.Int64("edit_id", u.EditID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		return nil, err
	}
	d.logger.Info("conflict flag updated",
		zap.String("key", key.String()),
		zap.Int64("edit_id", updated.ID),
		zap.String("outcome", string(outcome)),
		zap.Bool("has_conflict", updated.HasConflict))
	return &Detection{Outcome: outcome, Edit: updated}, nil
}

// knownWorldValue walks the history from newest to oldest and returns the
// last scraped value a human has seen: the most recent acknowledged conflict
// value, the value of the latest accepted scraper record, or else the
// previous value the run of corrections started from.
func knownWorldValue(history []models.FieldEdit) fields.Value {
	base := fields.Null
	for i := range history {
		rec := &history[i]
		if !rec.AcknowledgedValue.IsNull() {
			return rec.AcknowledgedValue
		}
		if !rec.Source.IsHuman() {
			if base.IsNull() {
				return rec.NewValue
			}
			return base
		}
		base = rec.PreviousValue
	}
	return base
}

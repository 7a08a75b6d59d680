package edits

import (
	"context"

	"go.uber.org/zap"

	"apartment-locator/internal/models"
)

// Resolution is a human decision on a flagged conflict
type Resolution string

const (
	KeepLocator   Resolution = "keep_locator"
	AcceptScraper Resolution = "accept_scraper"
)

// ParseResolution validates a wire-level resolution value
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case KeepLocator, AcceptScraper:
		return r, nil
	}
	return "", &InvalidResolutionError{Value: s}
}

// ResolutionEngine closes conflicts
type ResolutionEngine struct {
	store     Store
	ownership Ownership
	logger    *zap.Logger
}

// NewResolutionEngine creates a resolution engine
func NewResolutionEngine(store Store, ownership Ownership, logger *zap.Logger) *ResolutionEngine {
	return &ResolutionEngine{store: store, ownership: ownership, logger: logger}
}

// Resolve applies resolution to the flagged record editID on behalf of resolvedBy.
//
// keep_locator clears the flags and leaves the correction standing.
// accept_scraper clears the flags and appends a scraper-sourced record carrying
// the conflicting value; both writes commit together or not at all.
func (e *ResolutionEngine) Resolve(ctx context.Context, editID int64, resolution string, resolvedBy string) error {
	res, err := ParseResolution(resolution)
	if err != nil {
		return err
	}

	rec, err := e.store.Get(ctx, editID)
	if err != nil {
		return err
	}
	if _, err := authorize(ctx, e.ownership, rec.TargetType, rec.TargetID, resolvedBy); err != nil {
		return err
	}

	var appended *models.FieldEdit
	err = e.store.WithinTx(ctx, func(tx Store) error {
		current, err := tx.Get(ctx, editID)
		if err != nil {
			return err
		}
		if !current.HasConflict {
			return &ConflictStateError{EditID: editID, Reason: "record is not flagged as conflicted"}
		}
		key, err := KeyOf(current)
		if err != nil {
			return err
		}
		latest, err := tx.LatestFor(ctx, key)
		if err != nil {
			return err
		}
		if latest == nil || latest.ID != current.ID {
			return &ConflictStateError{EditID: editID, Reason: "record has been superseded by a newer edit"}
		}

		switch res {
		case KeepLocator:
			_, err = tx.ApplyFlagUpdate(ctx, AcknowledgeConflict(current))
			return err
		case AcceptScraper:
			if _, err := tx.ApplyFlagUpdate(ctx, ClearConflict(current)); err != nil {
				return err
			}
			appended, err = tx.Append(ctx, Record{
				Key:           key,
				PreviousValue: current.NewValue,
				NewValue:      current.ConflictValue,
				Source:        models.EditSourceScraper,
			})
			return err
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("conflict resolution failed",
			zap.Int64("edit_id", editID),
			zap.String("resolution", resolution),
			zap.String("resolved_by", resolvedBy),
			zap.Error(err))
		return err
	}

	logFields := []zap.Field{
		zap.Int64("edit_id", editID),
		zap.String("resolution", string(res)),
		zap.String("resolved_by", resolvedBy),
	}
	if appended != nil {
		logFields = append(logFields, zap.Int64("appended_edit_id", appended.ID))
	}
	e.logger.Info("conflict resolved", logFields...)
	return nil
}

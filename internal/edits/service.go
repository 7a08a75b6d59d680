package edits

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// CreateEditRequest is a human correction.
// ScrapedValue is the baseline the caller has in hand; it becomes the
// previous value of a first-ever edit and may be Null. The record's source
// comes from the editor's tenant role.
type CreateEditRequest struct {
	Field        fields.Field
	TargetID     string
	NewValue     fields.Value
	EditedBy     string
	ScrapedValue fields.Value
}

// ClientFieldEdit is an edit record on a client, classified for re-matching
type ClientFieldEdit struct {
	models.FieldEdit
	IsPreferenceField bool `json:"is_preference_field"`
}

// Observation is one field value seen by a scraper refresh
type Observation struct {
	Field    fields.Field
	TargetID string
	Value    fields.Value
}

// ObservationResult pairs an observation with its detection outcome or error
type ObservationResult struct {
	Key       string  `json:"key"`
	Outcome   Outcome `json:"outcome,omitempty"`
	Err       error   `json:"-"`
	ErrorText string  `json:"error,omitempty"`
}

// RefreshSummary reports a scraper refresh pass
type RefreshSummary struct {
	Results []ObservationResult `json:"results"`
	Counts  map[Outcome]int     `json:"counts"`
	Failed  int                 `json:"failed"`
}

// Service is the entry point used by the API boundary
type Service struct {
	store      Store
	ownership  Ownership
	resolver   *OverlayResolver
	detector   *ConflictDetector
	engine     *ResolutionEngine
	aggregator *Aggregator
	logger     *zap.Logger
}

// NewService wires the overlay components around one store
func NewService(store Store, ownership Ownership, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		ownership:  ownership,
		resolver:   NewOverlayResolver(store),
		detector:   NewConflictDetector(store, logger),
		engine:     NewResolutionEngine(store, ownership, logger),
		aggregator: NewAggregator(store, logger),
		logger:     logger,
	}
}

// CreateEdit appends a human correction. Invalid fields and values are
// rejected before any write. A flagged predecessor on the same key is
// superseded: its flags are cleared in the same transaction.
func (s *Service) CreateEdit(ctx context.Context, req CreateEditRequest) (*models.FieldEdit, error) {
	if err := fields.Validate(req.Field, req.NewValue); err != nil {
		return nil, err
	}
	if !req.ScrapedValue.IsNull() && req.ScrapedValue.DataType() != req.Field.Spec().DataType {
		return nil, &ValidationError{Field: "scraped_value", Message: "does not match the field data type"}
	}
	req.TargetID = strings.TrimSpace(req.TargetID)
	if req.TargetID == "" {
		return nil, &ValidationError{Field: "target_id", Message: "target id is required"}
	}
	member, err := authorize(ctx, s.ownership, req.Field.Target(), req.TargetID, req.EditedBy)
	if err != nil {
		return nil, err
	}
	source := member.EditSource()

	key := fields.Key{Field: req.Field, TargetID: req.TargetID}
	editedBy := req.EditedBy
	var created *models.FieldEdit
	err = s.store.WithinTx(ctx, func(tx Store) error {
		latest, err := tx.LatestFor(ctx, key)
		if err != nil {
			return err
		}
		prior := overlay(req.Field, req.ScrapedValue, latest)
		if prior.CurrentValue.Equal(req.NewValue) {
			return &ValidationError{Field: req.Field.Name(), Message: "new value equals the current value"}
		}
		if latest != nil && latest.HasConflict {
			if _, err := tx.ApplyFlagUpdate(ctx, ClearConflict(latest)); err != nil {
				return err
			}
		}
		created, err = tx.Append(ctx, Record{
			Key:           key,
			PreviousValue: prior.CurrentValue,
			NewValue:      req.NewValue,
			Source:        source,
			EditedBy:      &editedBy,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("field edit created",
		zap.String("key", key.String()),
		zap.Int64("edit_id", created.ID),
		zap.String("source", string(created.Source)),
		zap.String("role", member.Role),
		zap.String("edited_by", editedBy))
	return created, nil
}

// CreateClientEdit appends a correction to a client record and reports whether
// the caller should re-run listing matching.
func (s *Service) CreateClientEdit(ctx context.Context, field fields.ClientField, clientID string, newValue fields.Value, editedBy string) (*ClientFieldEdit, error) {
	rec, err := s.CreateEdit(ctx, CreateEditRequest{
		Field:    field,
		TargetID: clientID,
		NewValue: newValue,
		EditedBy: editedBy,
	})
	if err != nil {
		return nil, err
	}
	return &ClientFieldEdit{FieldEdit: *rec, IsPreferenceField: field.IsPreference()}, nil
}

// ClientHistory returns the edit history of one client field with its classification
func (s *Service) ClientHistory(ctx context.Context, field fields.ClientField, clientID string) ([]ClientFieldEdit, error) {
	history, err := s.History(ctx, fields.Key{Field: field, TargetID: clientID})
	if err != nil {
		return nil, err
	}
	out := make([]ClientFieldEdit, 0, len(history))
	for _, rec := range history {
		out = append(out, ClientFieldEdit{FieldEdit: rec, IsPreferenceField: field.IsPreference()})
	}
	return out, nil
}

// Resolve returns the overlay for one field
func (s *Service) Resolve(ctx context.Context, key fields.Key, scraped fields.Value) (*FieldWithEdit, error) {
	return s.resolver.Resolve(ctx, key, scraped)
}

// Aggregate returns the overlay of every edited field of one entity
func (s *Service) Aggregate(ctx context.Context, targetType fields.TargetType, targetID string, snapshot Snapshot) (map[string]FieldWithEdit, error) {
	return s.aggregator.Aggregate(ctx, targetType, targetID, snapshot)
}

// ResolveConflict applies a human decision to a flagged record
func (s *Service) ResolveConflict(ctx context.Context, editID int64, resolution string, resolvedBy string) error {
	return s.engine.Resolve(ctx, editID, resolution, resolvedBy)
}

// Observe runs conflict detection for one scraped value
func (s *Service) Observe(ctx context.Context, key fields.Key, scraped fields.Value) (*Detection, error) {
	return s.detector.Observe(ctx, key, scraped)
}

// ObserveRefresh runs conflict detection for every field a scraper pass touched.
// Failures are recorded per observation and do not stop the pass.
func (s *Service) ObserveRefresh(ctx context.Context, observations []Observation) *RefreshSummary {
	summary := &RefreshSummary{
		Results: make([]ObservationResult, 0, len(observations)),
		Counts:  map[Outcome]int{},
	}
	for _, obs := range observations {
		key := fields.Key{Field: obs.Field, TargetID: obs.TargetID}
		result := ObservationResult{Key: key.String()}
		detection, err := s.detector.Observe(ctx, key, obs.Value)
		if err != nil {
			result.Err = err
			result.ErrorText = err.Error()
			summary.Failed++
		} else {
			result.Outcome = detection.Outcome
			summary.Counts[detection.Outcome]++
		}
		summary.Results = append(summary.Results, result)
	}

	s.logger.Info("scraper refresh observed",
		zap.Int("observations", len(observations)),
		zap.Int("flagged", summary.Counts[OutcomeFlagged]+summary.Counts[OutcomeReflagged]),
		zap.Int("converged", summary.Counts[OutcomeConverged]),
		zap.Int("failed", summary.Failed))
	return summary
}

// History returns every record for key, most recent first
func (s *Service) History(ctx context.Context, key fields.Key) ([]models.FieldEdit, error) {
	return s.store.HistoryFor(ctx, key)
}

// UnresolvedConflicts returns every flagged record system-wide. Callers that
// need tenant scoping must filter by ownership themselves.
func (s *Service) UnresolvedConflicts(ctx context.Context) ([]models.FieldEdit, error) {
	return s.store.UnresolvedConflicts(ctx)
}

// ConflictTrail returns every scraped value observed against a record
func (s *Service) ConflictTrail(ctx context.Context, editID int64) ([]models.ConflictObservation, error) {
	if _, err := s.store.Get(ctx, editID); err != nil {
		return nil, err
	}
	return s.store.ConflictTrail(ctx, editID)
}

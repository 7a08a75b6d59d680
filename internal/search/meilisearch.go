package search

import (
	"context"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// ConflictSource lists the records currently awaiting a human decision
type ConflictSource interface {
	UnresolvedConflicts(ctx context.Context) ([]models.FieldEdit, error)
}

// documentIndex is the subset of *meilisearch.Index the conflict index uses
type documentIndex interface {
	DeleteAllDocuments() (*meilisearch.TaskInfo, error)
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
}

// ConflictDocument is one flagged record as stored in the review index
type ConflictDocument struct {
	ID            int64  `json:"id"`
	TargetType    string `json:"target_type"`
	TargetID      string `json:"target_id"`
	FieldName     string `json:"field_name"`
	Label         string `json:"label"`
	CorrectedTo   string `json:"corrected_to"`
	ScrapedValue  string `json:"scraped_value"`
	PreviousValue string `json:"previous_value"`
	EditedBy      string `json:"edited_by"`
	DetectedAt    int64  `json:"detected_at"`
	CreatedAt     int64  `json:"created_at"`
}

// ConflictIndex mirrors the unresolved conflict queue into Meilisearch
type ConflictIndex struct {
	client  *meilisearch.Client
	index   documentIndex
	uid     string
	source  ConflictSource
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewConflictIndex creates an index client; call InitIndex before the first Sync
func NewConflictIndex(host, apiKey, uid string, source ConflictSource, logger *zap.Logger) *ConflictIndex {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if uid == "" {
		uid = "field_conflicts"
	}
	return &ConflictIndex{
		client:  client,
		index:   client.Index(uid),
		uid:     uid,
		source:  source,
		breaker: NewCircuitBreaker(3, 5*time.Minute, logger),
		logger:  logger,
	}
}

// InitIndex initializes the Meilisearch index
func (s *ConflictIndex) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.uid,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	idx := s.client.Index(s.uid)
	if _, err := idx.UpdateSearchableAttributes(&[]string{
		"target_id",
		"label",
		"field_name",
		"corrected_to",
		"scraped_value",
		"edited_by",
	}); err != nil {
		return err
	}
	if _, err := idx.UpdateFilterableAttributes(&[]string{
		"target_type",
		"target_id",
		"field_name",
		"edited_by",
	}); err != nil {
		return err
	}
	if _, err := idx.UpdateSortableAttributes(&[]string{
		"detected_at",
		"created_at",
	}); err != nil {
		return err
	}
	return nil
}

// Sync replaces the index content with the current unresolved conflicts and
// returns how many were indexed.
func (s *ConflictIndex) Sync(ctx context.Context) (int, error) {
	if s.breaker != nil && !s.breaker.CanProceed() {
		return 0, ErrIndexUnavailable
	}
	conflicts, err := s.source.UnresolvedConflicts(ctx)
	if err != nil {
		return 0, err
	}
	docs := BuildDocuments(conflicts)
	if err := s.replace(docs); err != nil {
		if s.breaker != nil {
			s.breaker.RecordFailure(err)
		}
		return 0, err
	}
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}
	s.logger.Info("conflict index synced",
		zap.String("index", s.uid),
		zap.Int("documents", len(docs)))
	return len(docs), nil
}

func (s *ConflictIndex) replace(docs []ConflictDocument) error {
	if _, err := s.index.DeleteAllDocuments(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := s.index.AddDocuments(docs, "id")
	return err
}

// BreakerStatus reports whether syncs are currently suspended
func (s *ConflictIndex) BreakerStatus() BreakerStatus {
	if s.breaker == nil {
		return BreakerStatus{}
	}
	return s.breaker.Status()
}

// BuildDocuments converts flagged records into index documents
func BuildDocuments(conflicts []models.FieldEdit) []ConflictDocument {
	docs := make([]ConflictDocument, 0, len(conflicts))
	for i := range conflicts {
		rec := &conflicts[i]
		doc := ConflictDocument{
			ID:         rec.ID,
			TargetType: string(rec.TargetType),
			TargetID:   rec.TargetID,
			FieldName:  rec.FieldName,
			Label:      rec.FieldName,
			CreatedAt:  rec.CreatedAt.Unix(),
		}
		if rec.ConflictDetectedAt != nil {
			doc.DetectedAt = rec.ConflictDetectedAt.Unix()
		}
		if rec.EditedBy != nil {
			doc.EditedBy = *rec.EditedBy
		}
		if key, err := edits.KeyOf(rec); err == nil {
			doc.Label = key.Field.Spec().Label
			doc.CorrectedTo = fields.Format(key.Field, rec.NewValue)
			doc.ScrapedValue = fields.Format(key.Field, rec.ConflictValue)
			doc.PreviousValue = fields.Format(key.Field, rec.PreviousValue)
		} else {
			doc.CorrectedTo = rec.NewValue.String()
			doc.ScrapedValue = rec.ConflictValue.String()
			doc.PreviousValue = rec.PreviousValue.String()
		}
		docs = append(docs, doc)
	}
	return docs
}

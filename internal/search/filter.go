package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meilisearch/meilisearch-go"

	"apartment-locator/internal/fields"
)

type FilterParams struct {
	Query      string
	TargetType string
	TargetID   string
	FieldNames []string
	EditedBy   string
	SortBy     string // detected_at or created_at, optionally suffixed :asc / :desc
	Limit      int64
	Offset     int64
}

// SearchResult represents a page of conflict documents
type SearchResult struct {
	Hits           []ConflictDocument `json:"hits"`
	TotalHits      int64              `json:"total_hits"`
	ProcessingTime int64              `json:"processing_time_ms"`
}

// quote escapes a filter value for the Meilisearch filter syntax
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "\\'") + "'"
}

func buildFilter(params FilterParams) string {
	var filters []string
	if params.TargetType != "" {
		filters = append(filters, "target_type = "+quote(params.TargetType))
	}
	if params.TargetID != "" {
		filters = append(filters, "target_id = "+quote(params.TargetID))
	}
	if len(params.FieldNames) > 0 {
		nameFilters := make([]string, len(params.FieldNames))
		for i, name := range params.FieldNames {
			nameFilters[i] = "field_name = " + quote(name)
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(nameFilters, " OR ")))
	}
	if params.EditedBy != "" {
		filters = append(filters, "edited_by = "+quote(params.EditedBy))
	}
	return strings.Join(filters, " AND ")
}

func buildSort(sortBy string) []string {
	switch sortBy {
	case "":
		return []string{"detected_at:asc"}
	case "detected_at", "created_at":
		return []string{sortBy + ":asc"}
	case "detected_at:asc", "detected_at:desc", "created_at:asc", "created_at:desc":
		return []string{sortBy}
	}
	return nil
}

// Search searches the review queue
func (s *ConflictIndex) Search(params FilterParams) (*SearchResult, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}
	sort := buildSort(params.SortBy)
	if sort == nil {
		return nil, &fields.ValidationError{Field: "sort_by", Message: fmt.Sprintf("unsupported sort %q", params.SortBy)}
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  params.Limit,
		Offset: params.Offset,
		Sort:   sort,
	}
	if filterStr := buildFilter(params); filterStr != "" {
		searchReq.Filter = filterStr
	}

	searchRes, err := s.index.Search(params.Query, searchReq)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Hits:           decodeHits(searchRes.Hits),
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

func decodeHits(hits []interface{}) []ConflictDocument {
	docs := make([]ConflictDocument, 0, len(hits))
	for _, hit := range hits {
		// Convert hit to JSON then to ConflictDocument
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc ConflictDocument
		if err := json.Unmarshal(hitJSON, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

package database

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

// MemoryStore keeps the edit log in process memory when no database is
// configured. WithinTx holds the write lock for the whole callback and swaps
// in the working copy only when the callback succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

var _ edits.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{now: time.Now}}
}

// NewMemoryStoreWithClock creates an empty store that stamps records with now
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{state: &memState{now: now}}
}

type memState struct {
	now          func() time.Time
	last         time.Time
	edits        []models.FieldEdit // index = id-1, insertion order
	observations []models.ConflictObservation
}

func (st *memState) clone() *memState {
	return &memState{
		now:          st.now,
		last:         st.last,
		edits:        append([]models.FieldEdit(nil), st.edits...),
		observations: append([]models.ConflictObservation(nil), st.observations...),
	}
}

// stamp never returns a time at or before the previous one, so insertion
// order and created_at order agree.
func (st *memState) stamp() time.Time {
	t := st.now().UTC()
	if !t.After(st.last) {
		t = st.last.Add(time.Nanosecond)
	}
	st.last = t
	return t
}

func (st *memState) append(rec edits.Record) *models.FieldEdit {
	row := models.FieldEdit{
		ID:            int64(len(st.edits) + 1),
		TargetType:    rec.Key.Field.Target(),
		TargetID:      rec.Key.TargetID,
		FieldName:     rec.Key.Field.Name(),
		PreviousValue: rec.PreviousValue,
		NewValue:      rec.NewValue,
		Source:        rec.Source,
		EditedBy:      rec.EditedBy,
		CreatedAt:     st.stamp(),
	}
	st.edits = append(st.edits, row)
	return &row
}

func (st *memState) get(id int64) (*models.FieldEdit, error) {
	if id < 1 || id > int64(len(st.edits)) {
		return nil, &edits.NotFoundError{Resource: "field edit", ID: strconv.FormatInt(id, 10)}
	}
	row := st.edits[id-1]
	return &row, nil
}

func matches(row *models.FieldEdit, key fields.Key) bool {
	return row.TargetType == key.Field.Target() &&
		row.TargetID == key.TargetID &&
		row.FieldName == key.Field.Name()
}

func (st *memState) latest(key fields.Key) *models.FieldEdit {
	for i := len(st.edits) - 1; i >= 0; i-- {
		if matches(&st.edits[i], key) {
			row := st.edits[i]
			return &row
		}
	}
	return nil
}

func (st *memState) history(key fields.Key) []models.FieldEdit {
	var out []models.FieldEdit
	for i := len(st.edits) - 1; i >= 0; i-- {
		if matches(&st.edits[i], key) {
			out = append(out, st.edits[i])
		}
	}
	return out
}

func (st *memState) lastRecords(targetType fields.TargetType, targetID string) map[string]models.FieldEdit {
	out := map[string]models.FieldEdit{}
	for i := len(st.edits) - 1; i >= 0; i-- {
		row := st.edits[i]
		if row.TargetType != targetType || row.TargetID != targetID {
			continue
		}
		if _, seen := out[row.FieldName]; !seen {
			out[row.FieldName] = row
		}
	}
	return out
}

func (st *memState) unresolved() []models.FieldEdit {
	var out []models.FieldEdit
	for _, row := range st.edits {
		if row.HasConflict {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (st *memState) applyFlagUpdate(u edits.FlagUpdate) (*models.FieldEdit, error) {
	if _, err := st.get(u.EditID); err != nil {
		return nil, err
	}
	row := &st.edits[u.EditID-1]
	if row.FlagVersion != u.ExpectedVersion {
		return nil, &edits.ConflictStateError{EditID: u.EditID, Reason: "conflict flags changed concurrently"}
	}

	row.HasConflict = u.HasConflict
	row.ConflictValue = u.ConflictValue
	if u.HasConflict {
		at := u.At
		row.ConflictDetectedAt = &at
	} else {
		row.ConflictDetectedAt = nil
	}
	if !u.AcknowledgedValue.IsNull() {
		row.AcknowledgedValue = u.AcknowledgedValue
	}
	row.FlagVersion++

	if u.Observation != "" && !u.ObservedValue.IsNull() {
		st.observations = append(st.observations, models.ConflictObservation{
			ID:         int64(len(st.observations) + 1),
			EditID:     u.EditID,
			Value:      u.ObservedValue,
			Outcome:    u.Observation,
			ObservedAt: u.At,
		})
	}
	updated := *row
	return &updated, nil
}

func (st *memState) trail(editID int64) []models.ConflictObservation {
	var out []models.ConflictObservation
	for _, obs := range st.observations {
		if obs.EditID == editID {
			out = append(out, obs)
		}
	}
	return out
}

func (s *MemoryStore) Append(_ context.Context, rec edits.Record) (*models.FieldEdit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.append(rec), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*models.FieldEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.get(id)
}

func (s *MemoryStore) LatestFor(_ context.Context, key fields.Key) (*models.FieldEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.latest(key), nil
}

func (s *MemoryStore) HistoryFor(_ context.Context, key fields.Key) ([]models.FieldEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.history(key), nil
}

func (s *MemoryStore) LastRecordsFor(_ context.Context, targetType fields.TargetType, targetID string) (map[string]models.FieldEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.lastRecords(targetType, targetID), nil
}

func (s *MemoryStore) UnresolvedConflicts(_ context.Context) ([]models.FieldEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.unresolved(), nil
}

func (s *MemoryStore) ApplyFlagUpdate(_ context.Context, u edits.FlagUpdate) (*models.FieldEdit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.applyFlagUpdate(u)
}

func (s *MemoryStore) ConflictTrail(_ context.Context, editID int64) ([]models.ConflictObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.trail(editID), nil
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx edits.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return edits.NewPersistenceError("transaction", err)
	}
	s.state = work
	return nil
}

// memTx runs against the working copy of an open transaction; the caller
// already holds the store lock.
type memTx struct {
	state *memState
}

func (t *memTx) Append(_ context.Context, rec edits.Record) (*models.FieldEdit, error) {
	return t.state.append(rec), nil
}

func (t *memTx) Get(_ context.Context, id int64) (*models.FieldEdit, error) {
	return t.state.get(id)
}

func (t *memTx) LatestFor(_ context.Context, key fields.Key) (*models.FieldEdit, error) {
	return t.state.latest(key), nil
}

func (t *memTx) HistoryFor(_ context.Context, key fields.Key) ([]models.FieldEdit, error) {
	return t.state.history(key), nil
}

func (t *memTx) LastRecordsFor(_ context.Context, targetType fields.TargetType, targetID string) (map[string]models.FieldEdit, error) {
	return t.state.lastRecords(targetType, targetID), nil
}

func (t *memTx) UnresolvedConflicts(_ context.Context) ([]models.FieldEdit, error) {
	return t.state.unresolved(), nil
}

func (t *memTx) ApplyFlagUpdate(_ context.Context, u edits.FlagUpdate) (*models.FieldEdit, error) {
	return t.state.applyFlagUpdate(u)
}

func (t *memTx) ConflictTrail(_ context.Context, editID int64) ([]models.ConflictObservation, error) {
	return t.state.trail(editID), nil
}

// WithinTx nests into the open transaction
func (t *memTx) WithinTx(_ context.Context, fn func(tx edits.Store) error) error {
	return fn(t)
}

package edits_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apartment-locator/internal/edits"
	"apartment-locator/internal/fields"
	"apartment-locator/internal/models"
)

func TestObserve_Outcomes(t *testing.T) {
	f := setupService(t)

	d, err := f.svc.Observe(f.ctx, rentKey, fields.Number(1500))
	require.NoError(t, err)
	assert.Equal(t, edits.OutcomeNoEdit, d.Outcome)

	r1 := f.editRent(t, 1500, 1600)

	assert.Equal(t, edits.OutcomeReconfirmed, f.observeRent(t, 1500).Outcome)
	assert.Equal(t, edits.OutcomeUnchanged, f.observeRent(t, 1600).Outcome)

	d, err = f.svc.Observe(f.ctx, rentKey, fields.Null)
	require.NoError(t, err)
	assert.Equal(t, edits.OutcomeIgnored, d.Outcome)

	rec, err := f.store.Get(f.ctx, r1.ID)
	require.NoError(t, err)
	assert.False(t, rec.HasConflict)
	assert.Zero(t, rec.FlagVersion, "no observation so far should have touched the flags")
}

func TestObserve_Idempotent(t *testing.T) {
	f := setupService(t)
	r1 := f.editRent(t, 1500, 1600)

	assert.Equal(t, edits.OutcomeFlagged, f.observeRent(t, 1550).Outcome)
	first, err := f.store.Get(f.ctx, r1.ID)
	require.NoError(t, err)

	assert.Equal(t, edits.OutcomeUnchanged, f.observeRent(t, 1550).Outcome)
	second, err := f.store.Get(f.ctx, r1.ID)
	require.NoError(t, err)

	assert.Equal(t, first.FlagVersion, second.FlagVersion)
	assert.Equal(t, first.ConflictDetectedAt, second.ConflictDetectedAt)

	trail, err := f.svc.ConflictTrail(f.ctx, r1.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

func TestObserve_ConvergenceClearsFlag(t *testing.T) {
	f := setupService(t)
	r1 := f.editRent(t, 1500, 1600)
	f.observeRent(t, 1550)

	d := f.observeRent(t, 1600)
	assert.Equal(t, edits.OutcomeConverged, d.Outcome)
	assert.False(t, d.Edit.HasConflict)
	assert.True(t, d.Edit.ConflictValue.IsNull())
	assert.Nil(t, d.Edit.ConflictDetectedAt)

	history, err := f.svc.History(f.ctx, rentKey)
	require.NoError(t, err)
	assert.Len(t, history, 1, "convergence must not append a record")
	assert.Equal(t, r1.ID, history[0].ID)
}

func TestObserve_RevertToOriginalClearsFlag(t *testing.T) {
	f := setupService(t)
	f.editRent(t, 1500, 1600)
	f.observeRent(t, 1550)

	d := f.observeRent(t, 1500)
	assert.Equal(t, edits.OutcomeReverted, d.Outcome)
	assert.False(t, d.Edit.HasConflict)
}

func TestObserve_AcceptedValueIsTheNewBaseline(t *testing.T) {
	f := setupService(t)
	r1 := f.editRent(t, 1500, 1600)
	f.observeRent(t, 1550)
	require.NoError(t, f.svc.ResolveConflict(f.ctx, r1.ID, "accept_scraper", locator))

	history, err := f.svc.History(f.ctx, rentKey)
	require.NoError(t, err)
	r2 := history[0]
	require.Equal(t, models.EditSourceScraper, r2.Source)

	assert.Equal(t, edits.OutcomeUnchanged, f.observeRent(t, 1550).Outcome)

	d := f.observeRent(t, 1700)
	assert.Equal(t, edits.OutcomeFlagged, d.Outcome)
	assert.Equal(t, r2.ID, d.Edit.ID)
	assert.True(t, d.Edit.ConflictValue.Equal(fields.Number(1700)))

	got, err := f.svc.Resolve(f.ctx, rentKey, fields.Number(1700))
	require.NoError(t, err)
	assert.True(t, got.CurrentValue.Equal(fields.Number(1550)))
	assert.True(t, got.HasConflict)

	// a correction made now starts from the accepted value and answers the conflict
	r3 := f.editRent(t, 1700, 1490)
	assert.True(t, r3.PreviousValue.Equal(fields.Number(1550)))
	old, err := f.store.Get(f.ctx, r2.ID)
	require.NoError(t, err)
	assert.False(t, old.HasConflict)
}

func TestObserve_KeepAcceptedValueAcknowledgesScrape(t *testing.T) {
	f := setupService(t)
	r1 := f.editRent(t, 1500, 1600)
	f.observeRent(t, 1550)
	require.NoError(t, f.svc.ResolveConflict(f.ctx, r1.ID, "accept_scraper", locator))

	d := f.observeRent(t, 1700)
	require.Equal(t, edits.OutcomeFlagged, d.Outcome)
	require.NoError(t, f.svc.ResolveConflict(f.ctx, d.Edit.ID, "keep_locator", locator))

	assert.Equal(t, edits.OutcomeReconfirmed, f.observeRent(t, 1700).Outcome)
	assert.Equal(t, edits.OutcomeFlagged, f.observeRent(t, 1725).Outcome)
}

func TestObserve_RejectsClientFields(t *testing.T) {
	f := setupService(t)
	_, err := f.svc.Observe(f.ctx, fields.Key{Field: fields.ClientBudgetMax, TargetID: "client-1"}, fields.Number(1))
	require.ErrorIs(t, err, edits.ErrValidation)
}

func TestObserve_ConcurrentFlagUpdatesDoNotBothWin(t *testing.T) {
	f := setupService(t)
	r1 := f.editRent(t, 1500, 1600)
	rec, err := f.store.Get(f.ctx, r1.ID)
	require.NoError(t, err)

	// both writers read the same flag version
	updates := []edits.FlagUpdate{
		edits.RaiseConflict(rec, fields.Number(1550)),
		edits.RaiseConflict(rec, fields.Number(1560)),
	}
	errs := make([]error, len(updates))
	var wg sync.WaitGroup
	for i := range updates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.store.ApplyFlagUpdate(f.ctx, updates[i])
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, edits.ErrConflictState)
		lost++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	final, err := f.store.Get(f.ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.FlagVersion+1, final.FlagVersion)
}

func TestConcurrentObservations(t *testing.T) {
	f := setupService(t)
	f.editRent(t, 1500, 1600)
	detector := edits.NewConflictDetector(f.store, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// losers of the compare-and-set report a conflict state error; that is fine
			_, _ = detector.Observe(f.ctx, rentKey, fields.Number(1550))
		}()
	}
	wg.Wait()

	history, err := f.svc.History(f.ctx, rentKey)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].HasConflict)
	assert.True(t, history[0].ConflictValue.Equal(fields.Number(1550)))
	assert.Equal(t, models.EditSourceLocator, history[0].Source)
}

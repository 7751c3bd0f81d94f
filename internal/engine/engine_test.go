package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"

	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
	"github.com/leadscope/prospect-cli/internal/store"
	"github.com/leadscope/prospect-cli/pkg/oracle"
)

// fakeOracle answers lookups from a callback.
type fakeOracle struct {
	fn func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error)

	inFlight      atomic.Int64
	maxInFlight   atomic.Int64
	totalRequests atomic.Int64
}

func (f *fakeOracle) Lookup(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	f.totalRequests.Add(1)
	return f.fn(ctx, req)
}

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu        sync.Mutex
	prospects map[string]model.QuarantineRecord
	analyses  map[string]model.AnalysisRecord
	failTaxID string
}

func newMemStore() *memStore {
	return &memStore{
		prospects: make(map[string]model.QuarantineRecord),
		analyses:  make(map[string]model.AnalysisRecord),
	}
}

func (m *memStore) UpsertProspect(ctx context.Context, rec model.QuarantineRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTaxID != "" && rec.TaxID == m.failTaxID {
		return eris.New("disk full")
	}
	m.prospects[rec.TaxID] = rec
	return nil
}

func (m *memStore) GetProspect(ctx context.Context, taxID string) (*model.QuarantineRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.prospects[taxID]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memStore) ListProspects(ctx context.Context, filter store.ProspectFilter) ([]model.QuarantineRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.QuarantineRecord, 0, len(m.prospects))
	for _, rec := range m.prospects {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) CreateAnalysis(ctx context.Context, rec model.AnalysisRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("audit-%d", len(m.analyses)+1)
	rec.ID = id
	rec.Status = model.StatusPending
	m.analyses[id] = rec
	return id, nil
}

func (m *memStore) FinalizeAnalysis(ctx context.Context, id string, rec model.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.analyses[id]
	if !ok {
		return eris.Errorf("analysis %s not found", id)
	}
	existing.Status = rec.Status
	existing.ICPScore = rec.ICPScore
	existing.Temperature = rec.Temperature
	existing.Reason = rec.Reason
	existing.Error = rec.Error
	m.analyses[id] = existing
	return nil
}

func (m *memStore) SaveTemplate(ctx context.Context, tpl mapping.Template) (string, error) {
	return "", nil
}
func (m *memStore) ListTemplates(ctx context.Context) ([]mapping.Template, error) { return nil, nil }
func (m *memStore) GetTemplate(ctx context.Context, id string) (*mapping.Template, error) {
	return nil, nil
}
func (m *memStore) DeleteTemplate(ctx context.Context, id string) error { return nil }
func (m *memStore) TouchTemplate(ctx context.Context, id string) error  { return nil }
func (m *memStore) Migrate(ctx context.Context) error                   { return nil }
func (m *memStore) Close() error                                        { return nil }

func (m *memStore) prospect(taxID string) (model.QuarantineRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.prospects[taxID]
	return rec, ok
}

func (m *memStore) analysisByTaxID(taxID string) (model.AnalysisRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.analyses {
		if rec.TaxID == taxID {
			return rec, true
		}
	}
	return model.AnalysisRecord{}, false
}

func notACustomer(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
	return &oracle.LookupResponse{Success: false, Score: 10}, nil
}

func testCompanies(n int) []model.Company {
	companies := make([]model.Company, n)
	for i := range companies {
		taxID := fmt.Sprintf("112223330001%02d", i)
		companies[i] = model.Company{
			TaxID:     taxID,
			LegalName: fmt.Sprintf("Empresa %d", i),
			RowIndex:  i,
			Fields: map[string]string{
				model.FieldTaxID:         taxID,
				model.FieldState:         "SP",
				model.FieldRegistryState: "ATIVA",
			},
		}
	}
	return companies
}

func testCriteria() model.ICPCriteria {
	c := model.DefaultCriteria()
	c.PriorityStates = []string{"SP"}
	return c
}

func TestRunCompletesEveryItem(t *testing.T) {
	st := newMemStore()
	eng := New(Config{Concurrency: 3}, &fakeOracle{fn: notACustomer}, st, testCriteria())

	companies := testCompanies(7)
	run := eng.Start(context.Background(), companies, nil)
	results := run.Wait()

	require.Len(t, results, len(companies))
	for _, res := range results {
		assert.NotEmpty(t, res.Outcome)
		assert.Equal(t, model.OutcomeApproved, res.Outcome)
	}
	for _, it := range run.Items() {
		for _, step := range it.Steps() {
			assert.True(t, step.Status.terminal(), "step %s of row %d must be terminal", step.Name, it.Company.RowIndex)
		}
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		time.Sleep(20 * time.Millisecond)
		return &oracle.LookupResponse{Success: false}, nil
	}}
	eng := New(Config{Concurrency: 3}, oc, newMemStore(), testCriteria())

	run := eng.Start(context.Background(), testCompanies(10), nil)
	run.Wait()

	assert.LessOrEqual(t, oc.maxInFlight.Load(), int64(3))
	assert.Equal(t, int64(10), oc.totalRequests.Load())
}

func TestExistingCustomerShortCircuit(t *testing.T) {
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		return &oracle.LookupResponse{
			Success:          true,
			Score:            85,
			PlatformsChecked: []string{"portal"},
			Evidence:         []oracle.Evidence{{Source: "portal", Description: "contrato ativo"}},
		}, nil
	}}
	st := newMemStore()
	eng := New(Config{Concurrency: 1, ExistingCustomerScore: 70}, oc, st, testCriteria())

	companies := testCompanies(1)
	run := eng.Start(context.Background(), companies, nil)
	results := run.Wait()

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, model.OutcomeRejected, res.Outcome)
	assert.True(t, res.ExistingCustomer)
	assert.Equal(t, "already an active customer", res.RejectReason)
	require.Len(t, res.Evidence, 1)

	steps := run.Items()[0].Steps()
	byName := map[StepName]Step{}
	for _, s := range steps {
		byName[s.Name] = s
	}
	assert.Equal(t, StepDone, byName[StepCustomerCheck].Status)
	assert.Equal(t, StepSkipped, byName[StepFinancialDocs].Status)
	assert.Equal(t, StepSkipped, byName[StepEvidence].Status)
	assert.Equal(t, StepSkipped, byName[StepScore].Status)
	assert.Equal(t, StepDone, byName[StepPersist].Status)

	rec, ok := st.prospect(companies[0].TaxID)
	require.True(t, ok)
	assert.Equal(t, model.StatusDiscarded, rec.Status)

	audit, ok := st.analysisByTaxID(companies[0].TaxID)
	require.True(t, ok)
	assert.Equal(t, model.StatusDiscarded, audit.Status)
}

func TestLookupBelowThresholdContinues(t *testing.T) {
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		return &oracle.LookupResponse{Success: true, Score: 40}, nil
	}}
	st := newMemStore()
	eng := New(Config{Concurrency: 1, ExistingCustomerScore: 70}, oc, st, testCriteria())

	companies := testCompanies(1)
	results := eng.Start(context.Background(), companies, nil).Wait()

	require.Len(t, results, 1)
	assert.Equal(t, model.OutcomeApproved, results[0].Outcome)
	assert.False(t, results[0].ExistingCustomer)

	rec, ok := st.prospect(companies[0].TaxID)
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, rec.Status)
}

func TestDegradedOnLookupFailure(t *testing.T) {
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		return nil, eris.New("connection refused")
	}}
	st := newMemStore()
	eng := New(Config{Concurrency: 1}, oc, st, testCriteria())

	companies := testCompanies(1)
	run := eng.Start(context.Background(), companies, nil)
	results := run.Wait()

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, model.OutcomeApproved, res.Outcome)
	assert.True(t, res.DegradedAnalysis)
	assert.Empty(t, res.Evidence)

	// A failed lookup degrades the checkpoint, it does not fail it.
	for _, s := range run.Items()[0].Steps() {
		if s.Name == StepCustomerCheck {
			assert.Equal(t, StepDone, s.Status)
		}
	}
}

func TestNilOracleRunsDegraded(t *testing.T) {
	eng := New(Config{Concurrency: 1}, nil, newMemStore(), testCriteria())
	results := eng.Start(context.Background(), testCompanies(2), nil).Wait()

	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, model.OutcomeApproved, res.Outcome)
		assert.True(t, res.DegradedAnalysis)
	}
}

func TestPersistFailureDoesNotAbortBatch(t *testing.T) {
	st := newMemStore()
	companies := testCompanies(3)
	st.failTaxID = companies[1].TaxID

	eng := New(Config{Concurrency: 1}, &fakeOracle{fn: notACustomer}, st, testCriteria())
	results := eng.Start(context.Background(), companies, nil).Wait()

	require.Len(t, results, 3)
	outcomes := map[string]model.Outcome{}
	failedSteps := map[string]string{}
	for _, res := range results {
		outcomes[res.TaxID] = res.Outcome
		failedSteps[res.TaxID] = res.FailedStep
	}
	assert.Equal(t, model.OutcomeApproved, outcomes[companies[0].TaxID])
	assert.Equal(t, model.OutcomeError, outcomes[companies[1].TaxID])
	assert.Equal(t, model.OutcomeApproved, outcomes[companies[2].TaxID])
	assert.Equal(t, string(StepPersist), failedSteps[companies[1].TaxID])
	assert.Empty(t, failedSteps[companies[0].TaxID])

	audit, ok := st.analysisByTaxID(companies[1].TaxID)
	require.True(t, ok)
	assert.Equal(t, model.StatusError, audit.Status)
}

func TestValidationFailureSkipsRemainingSteps(t *testing.T) {
	oc := &fakeOracle{fn: notACustomer}
	eng := New(Config{Concurrency: 1}, oc, newMemStore(), testCriteria())

	bad := []model.Company{{TaxID: "123", LegalName: "Curta Demais", RowIndex: 0}}
	run := eng.Start(context.Background(), bad, nil)
	results := run.Wait()

	require.Len(t, results, 1)
	assert.Equal(t, model.OutcomeError, results[0].Outcome)
	assert.Equal(t, string(StepValidation), results[0].FailedStep)
	assert.Zero(t, oc.totalRequests.Load())

	for _, s := range run.Items()[0].Steps() {
		if s.Name == StepValidation {
			assert.Equal(t, StepFailed, s.Status)
		} else {
			assert.Equal(t, StepSkipped, s.Status)
		}
	}
}

func TestPauseBlocksNewItems(t *testing.T) {
	release := make(chan struct{})
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		<-release
		return &oracle.LookupResponse{Success: false}, nil
	}}
	eng := New(Config{Concurrency: 1}, oc, newMemStore(), testCriteria())

	run := eng.Start(context.Background(), testCompanies(3), nil)
	run.Pause()
	assert.True(t, run.Snapshot().Paused)

	// Let the first item (already past the gate) finish.
	release <- struct{}{}
	time.Sleep(50 * time.Millisecond)

	snap := run.Snapshot()
	assert.LessOrEqual(t, snap.Completed, 1)

	run.Resume()
	close(release)
	results := run.Wait()
	assert.Len(t, results, 3)
	assert.Equal(t, 3, run.Snapshot().Completed)
}

func TestCancelSkipsWaitingItems(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return &oracle.LookupResponse{Success: false}, nil
	}}
	eng := New(Config{Concurrency: 1}, oc, newMemStore(), testCriteria())

	run := eng.Start(context.Background(), testCompanies(5), nil)
	<-started
	run.Cancel()
	close(release)

	results := run.Wait()
	require.Len(t, results, 5)

	var cancelled, finished int
	for _, res := range results {
		if res.ErrorMessage == "batch cancelled before analysis" {
			cancelled++
		} else {
			finished++
		}
	}
	assert.GreaterOrEqual(t, cancelled, 1)
	assert.GreaterOrEqual(t, finished, 1)
	// The item in flight when Cancel arrived ran to completion.
	assert.LessOrEqual(t, oc.totalRequests.Load(), int64(2))
}

func TestControlsAfterCompletion(t *testing.T) {
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		return &oracle.LookupResponse{Success: false}, nil
	}}
	eng := New(Config{}, oc, newMemStore(), testCriteria())

	run := eng.Start(context.Background(), testCompanies(2), nil)
	require.Len(t, run.Wait(), 2)

	// A signal handler may fire Cancel after the batch already drained.
	assert.NotPanics(t, func() {
		run.Cancel()
		run.Pause()
		run.Resume()
	})
}

func TestStepMonotonicity(t *testing.T) {
	it := newItem(model.Company{TaxID: "11222333000181", LegalName: "Acme"})

	it.startStep(StepValidation)
	it.finishStep(StepValidation, StepDone, "")
	it.finishStep(StepValidation, StepFailed, "late failure must not apply")
	it.startStep(StepValidation)

	for _, s := range it.Steps() {
		if s.Name == StepValidation {
			assert.Equal(t, StepDone, s.Status)
			assert.Empty(t, s.Detail)
		}
	}
}

func TestBreakerSuspendsLookupsAfterFailures(t *testing.T) {
	oc := &fakeOracle{fn: func(ctx context.Context, req oracle.LookupRequest) (*oracle.LookupResponse, error) {
		return nil, eris.New("connection refused")
	}}
	eng := New(Config{Concurrency: 1, BreakerThreshold: 2, BreakerCooldown: time.Hour}, oc, newMemStore(), testCriteria())

	results := eng.Start(context.Background(), testCompanies(6), nil).Wait()
	require.Len(t, results, 6)

	// After two consecutive failures, remaining lookups are suspended.
	assert.Equal(t, int64(2), oc.totalRequests.Load())
	for _, res := range results {
		assert.True(t, res.DegradedAnalysis)
		assert.Equal(t, model.OutcomeApproved, res.Outcome)
	}
}

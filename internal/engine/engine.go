// Package engine runs admitted companies through the qualification
// pipeline with bounded concurrency, per-item checkpoints and batch-level
// pause, resume and cancel.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadscope/prospect-cli/internal/model"
	"github.com/leadscope/prospect-cli/internal/resilience"
	"github.com/leadscope/prospect-cli/internal/scoring"
	"github.com/leadscope/prospect-cli/internal/store"
	"github.com/leadscope/prospect-cli/pkg/oracle"
)

// DefaultConcurrency is the worker count used when the config leaves it unset.
const DefaultConcurrency = 3

// Config tunes a batch run.
type Config struct {
	// Concurrency is the number of items analyzed at once.
	Concurrency int

	// ExistingCustomerScore is the minimum lookup score that discards an
	// item as an existing customer.
	ExistingCustomerScore int

	// BreakerThreshold opens the lookup breaker after this many
	// consecutive failures.
	BreakerThreshold int

	// BreakerCooldown is how long the lookup breaker stays open.
	BreakerCooldown time.Duration

	// Origin labels the audit trail rows, usually the source file name.
	Origin string

	// Retry governs lookup attempts. The default is a single attempt so
	// a flaky service degrades the item instead of stalling the batch.
	Retry resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ExistingCustomerScore <= 0 {
		c.ExistingCustomerScore = 70
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = resilience.DefaultRetryConfig()
	}
	return c
}

// Engine owns the shared dependencies of batch runs.
type Engine struct {
	cfg      Config
	oracle   oracle.Client
	store    store.Store
	criteria model.ICPCriteria
}

// New builds an engine. The oracle client may be nil, in which case every
// item runs the degraded path.
func New(cfg Config, oc oracle.Client, st store.Store, criteria model.ICPCriteria) *Engine {
	return &Engine{cfg: cfg.withDefaults(), oracle: oc, store: st, criteria: criteria}
}

// Run is one batch in flight.
type Run struct {
	engine  *Engine
	items   []*Item
	gate    *gate
	tracker *tracker
	events  *notifier
	breaker *resilience.Breaker

	cancelled     atomic.Bool
	degradedWarns atomic.Int64

	mu      sync.Mutex
	results []model.AnalysisResult

	done chan struct{}
}

// Start launches the batch and returns immediately. Collect the outcome
// with Wait.
func (e *Engine) Start(ctx context.Context, companies []model.Company, listener Listener) *Run {
	r := &Run{
		engine:  e,
		gate:    newGate(),
		tracker: newTracker(len(companies), e.cfg.Concurrency),
		events:  newNotifier(listener),
		breaker: resilience.NewBreaker(e.cfg.BreakerThreshold, e.cfg.BreakerCooldown),
		done:    make(chan struct{}),
	}
	r.items = make([]*Item, len(companies))
	for i, c := range companies {
		r.items[i] = newItem(c)
	}

	go r.run(ctx)
	return r
}

// Pause stops new items from starting. Items already in flight finish
// their current checkpoint sequence.
func (r *Run) Pause() {
	r.gate.Pause()
	r.events.publish(Event{Kind: EventPaused})
}

// Resume releases a paused batch.
func (r *Run) Resume() {
	r.gate.Resume()
	r.events.publish(Event{Kind: EventResumed})
}

// Cancel stops the batch. Waiting items are marked cancelled, in-flight
// items run to completion. Idempotent.
func (r *Run) Cancel() {
	if r.cancelled.CompareAndSwap(false, true) {
		r.gate.Resume()
		r.events.publish(Event{Kind: EventCancelled})
	}
}

// Snapshot returns current progress.
func (r *Run) Snapshot() Snapshot {
	return r.tracker.snapshot(r.gate.Paused())
}

// Items returns the run's items in submission order.
func (r *Run) Items() []*Item {
	return r.items
}

// Wait blocks until every item has a terminal result and returns them in
// completion order.
func (r *Run) Wait() []model.AnalysisResult {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AnalysisResult, len(r.results))
	copy(out, r.results)
	return out
}

func (r *Run) run(ctx context.Context) {
	defer close(r.done)
	defer r.events.close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.engine.cfg.Concurrency)

	for _, it := range r.items {
		if err := r.gate.Wait(gctx); err != nil {
			r.Cancel()
		}
		if r.cancelled.Load() || gctx.Err() != nil {
			r.finishCancelled(it)
			continue
		}

		it := it
		g.Go(func() error {
			// One failed item never aborts the batch.
			r.processItem(gctx, it)
			return nil
		})
	}

	g.Wait()
}

func (r *Run) finishCancelled(it *Item) {
	it.skipRemaining(StepValidation, "batch cancelled")
	res := &model.AnalysisResult{
		RowIndex:     it.Company.RowIndex,
		TaxID:        it.Company.TaxID,
		LegalName:    it.Company.Name(),
		Outcome:      model.OutcomeError,
		ErrorMessage: "batch cancelled before analysis",
	}
	it.setResult(res)
	r.record(it, res, 0)
}

func (r *Run) record(it *Item, res *model.AnalysisResult, elapsed time.Duration) {
	res.ElapsedMillis = elapsed.Milliseconds()
	r.mu.Lock()
	r.results = append(r.results, *res)
	r.mu.Unlock()
	r.tracker.itemCompleted(res.Outcome, elapsed)
	r.events.publish(Event{
		Kind:     EventItemCompleted,
		RowIndex: res.RowIndex,
		Company:  res.LegalName,
		Detail:   string(res.Outcome),
	})
}

func (r *Run) processItem(ctx context.Context, it *Item) {
	start := time.Now()
	r.tracker.itemStarted()
	r.events.publish(Event{Kind: EventItemStarted, RowIndex: it.Company.RowIndex, Company: it.Company.Name()})

	res := &model.AnalysisResult{
		RowIndex:  it.Company.RowIndex,
		TaxID:     it.Company.TaxID,
		LegalName: it.Company.Name(),
	}
	defer func() {
		it.setResult(res)
		r.record(it, res, time.Since(start))
	}()

	auditID := r.openAudit(ctx, it)

	if err := r.runValidation(it); err != nil {
		res.Outcome = model.OutcomeError
		res.ErrorMessage = err.Error()
		res.FailedStep = string(StepValidation)
		it.skipRemaining(StepCustomerCheck, "validation failed")
		r.closeAudit(ctx, auditID, model.AnalysisRecord{
			Status: model.StatusError,
			Error:  res.ErrorMessage,
		})
		return
	}

	r.pausePoint(ctx)
	lookup, degraded := r.runCustomerCheck(ctx, it)
	if lookup != nil && lookup.Success && lookup.Score >= r.engine.cfg.ExistingCustomerScore {
		r.finishExistingCustomer(ctx, it, res, lookup, auditID)
		return
	}
	if degraded {
		res.DegradedAnalysis = true
		r.warnDegradedOnce(it)
	}

	r.pausePoint(ctx)
	r.runFinancialDocs(it)
	r.runEvidence(it, res, lookup)

	scored := r.runScore(it, res)

	r.pausePoint(ctx)
	if err := r.runPersist(ctx, it, res, scored); err != nil {
		res.Outcome = model.OutcomeError
		res.ErrorMessage = err.Error()
		res.FailedStep = string(StepPersist)
		r.closeAudit(ctx, auditID, model.AnalysisRecord{
			Status: model.StatusError,
			Error:  res.ErrorMessage,
		})
		return
	}

	res.Outcome = model.OutcomeApproved
	r.closeAudit(ctx, auditID, model.AnalysisRecord{
		Status:      model.StatusPending,
		ICPScore:    res.ICPScore,
		Temperature: res.Temperature,
		Breakdown:   res.Breakdown,
		Reason:      strings.Join(res.Reasons, "; "),
	})
}

func (r *Run) openAudit(ctx context.Context, it *Item) string {
	if r.engine.store == nil {
		return ""
	}
	id, err := r.engine.store.CreateAnalysis(ctx, model.AnalysisRecord{
		TaxID:     it.Company.TaxID,
		LegalName: it.Company.Name(),
		Origin:    r.engine.cfg.Origin,
		RawFields: it.Company.Fields,
	})
	if err != nil {
		zap.L().Warn("audit trail open failed",
			zap.String("tax_id", it.Company.TaxID),
			zap.Error(err),
		)
		return ""
	}
	return id
}

func (r *Run) closeAudit(ctx context.Context, id string, rec model.AnalysisRecord) {
	if id == "" || r.engine.store == nil {
		return
	}
	if err := r.engine.store.FinalizeAnalysis(ctx, id, rec); err != nil {
		zap.L().Warn("audit trail close failed",
			zap.String("audit_id", id),
			zap.Error(err),
		)
	}
}

func (r *Run) runValidation(it *Item) error {
	it.startStep(StepValidation)
	if len(it.Company.TaxID) != model.TaxIDLength {
		it.finishStep(StepValidation, StepFailed, "invalid tax id")
		return eris.Errorf("engine: invalid tax id %q", it.Company.TaxID)
	}
	if it.Company.Name() == "" {
		it.finishStep(StepValidation, StepFailed, "missing company name")
		return eris.New("engine: missing company name")
	}
	it.finishStep(StepValidation, StepDone, "")
	r.stepEvent(it, StepValidation, StepDone, "")
	return nil
}

// runCustomerCheck queries the lookup service. A failed lookup degrades
// the item to basic analysis instead of failing it.
func (r *Run) runCustomerCheck(ctx context.Context, it *Item) (*oracle.LookupResponse, bool) {
	it.startStep(StepCustomerCheck)

	if r.engine.oracle == nil {
		it.finishStep(StepCustomerCheck, StepDone, "lookup unavailable, basic analysis")
		r.stepEvent(it, StepCustomerCheck, StepDone, "lookup unavailable")
		return nil, true
	}
	if err := r.breaker.Allow(); err != nil {
		it.finishStep(StepCustomerCheck, StepDone, "lookup suspended, basic analysis")
		r.stepEvent(it, StepCustomerCheck, StepDone, "lookup suspended")
		return nil, true
	}

	resp, err := resilience.DoVal(ctx, r.engine.cfg.Retry, func(ctx context.Context) (*oracle.LookupResponse, error) {
		return r.engine.oracle.Lookup(ctx, oracle.LookupRequest{
			Company: it.Company.Name(),
			TaxID:   it.Company.TaxID,
			Domain:  it.Company.Domain,
		})
	})
	r.breaker.Record(err)
	if err != nil {
		zap.L().Warn("customer lookup failed",
			zap.String("tax_id", it.Company.TaxID),
			zap.Error(err),
		)
		it.finishStep(StepCustomerCheck, StepDone, "lookup failed, basic analysis")
		r.stepEvent(it, StepCustomerCheck, StepDone, "lookup failed")
		return nil, true
	}

	detail := fmt.Sprintf("lookup score %d", resp.Score)
	it.finishStep(StepCustomerCheck, StepDone, detail)
	r.stepEvent(it, StepCustomerCheck, StepDone, detail)
	return resp, false
}

func (r *Run) finishExistingCustomer(ctx context.Context, it *Item, res *model.AnalysisResult, lookup *oracle.LookupResponse, auditID string) {
	it.finishStep(StepFinancialDocs, StepSkipped, "existing customer")
	it.finishStep(StepEvidence, StepSkipped, "existing customer")
	it.finishStep(StepScore, StepSkipped, "existing customer")

	res.Outcome = model.OutcomeRejected
	res.RejectReason = "already an active customer"
	res.ExistingCustomer = true
	res.PlatformsChecked = len(lookup.PlatformsChecked)
	for _, ev := range lookup.Evidence {
		res.Evidence = append(res.Evidence, model.Evidence{Source: ev.Source, Description: ev.Description})
	}

	it.startStep(StepPersist)
	err := r.persistRecord(ctx, model.QuarantineRecord{
		TaxID:        it.Company.TaxID,
		LegalName:    it.Company.Name(),
		Status:       model.StatusDiscarded,
		RejectReason: res.RejectReason,
		Evidence:     res.Evidence,
		Temperature:  model.TemperatureCold,
	})
	if err != nil {
		it.finishStep(StepPersist, StepFailed, err.Error())
		res.Outcome = model.OutcomeError
		res.ErrorMessage = err.Error()
		res.FailedStep = string(StepPersist)
		r.closeAudit(ctx, auditID, model.AnalysisRecord{Status: model.StatusError, Error: err.Error()})
		return
	}
	it.finishStep(StepPersist, StepDone, "")

	r.closeAudit(ctx, auditID, model.AnalysisRecord{
		Status: model.StatusDiscarded,
		Reason: res.RejectReason,
	})
}

// runFinancialDocs summarizes the financial signals carried by the row
// itself. The lookup service does not expose financial documents, so this
// checkpoint only inventories what the spreadsheet provided.
func (r *Run) runFinancialDocs(it *Item) {
	it.startStep(StepFinancialDocs)
	var found []string
	for _, key := range []string{model.FieldRevenue, model.FieldShareCapital, model.FieldEmployees, model.FieldFoundedAt} {
		if strings.TrimSpace(it.Company.Fields[key]) != "" {
			found = append(found, key)
		}
	}
	detail := "no financial signals"
	if len(found) > 0 {
		detail = fmt.Sprintf("%d financial signals: %s", len(found), strings.Join(found, ", "))
	}
	it.finishStep(StepFinancialDocs, StepDone, detail)
	r.stepEvent(it, StepFinancialDocs, StepDone, detail)
}

func (r *Run) runEvidence(it *Item, res *model.AnalysisResult, lookup *oracle.LookupResponse) {
	it.startStep(StepEvidence)
	if lookup != nil {
		res.PlatformsChecked = len(lookup.PlatformsChecked)
		for _, ev := range lookup.Evidence {
			res.Evidence = append(res.Evidence, model.Evidence{Source: ev.Source, Description: ev.Description})
		}
	}
	detail := fmt.Sprintf("%d evidence items", len(res.Evidence))
	it.finishStep(StepEvidence, StepDone, detail)
	r.stepEvent(it, StepEvidence, StepDone, detail)
}

func (r *Run) runScore(it *Item, res *model.AnalysisResult) scoring.Result {
	it.startStep(StepScore)
	scored := scoring.Score(it.Company.Fields, r.engine.criteria)
	res.ICPScore = scored.Score
	res.Temperature = scored.Temperature
	res.Breakdown = &scored.Breakdown
	res.Reasons = scored.Reasons

	detail := fmt.Sprintf("score %d (%s)", scored.Score, scored.Temperature)
	it.finishStep(StepScore, StepDone, detail)
	r.stepEvent(it, StepScore, StepDone, detail)
	return scored
}

func (r *Run) runPersist(ctx context.Context, it *Item, res *model.AnalysisResult, scored scoring.Result) error {
	it.startStep(StepPersist)
	err := r.persistRecord(ctx, model.QuarantineRecord{
		TaxID:       it.Company.TaxID,
		LegalName:   it.Company.Name(),
		ICPScore:    scored.Score,
		Temperature: scored.Temperature,
		Status:      model.StatusPending,
		Evidence:    res.Evidence,
	})
	if err != nil {
		it.finishStep(StepPersist, StepFailed, err.Error())
		r.stepEvent(it, StepPersist, StepFailed, err.Error())
		return err
	}
	it.finishStep(StepPersist, StepDone, "")
	r.stepEvent(it, StepPersist, StepDone, "")
	return nil
}

// pausePoint blocks a worker before its next checkpoint while the batch is
// paused. Cancellation and context errors release it; the item then runs
// its remaining checkpoints to a terminal state.
func (r *Run) pausePoint(ctx context.Context) {
	_ = r.gate.Wait(ctx)
}

func (r *Run) persistRecord(ctx context.Context, rec model.QuarantineRecord) error {
	if r.engine.store == nil {
		return nil
	}
	return r.engine.store.UpsertProspect(ctx, rec)
}

func (r *Run) warnDegradedOnce(it *Item) {
	if r.degradedWarns.Add(1) == 1 {
		zap.L().Warn("lookup service unavailable, batch continues with basic analysis")
		r.events.publish(Event{
			Kind:    EventDegraded,
			Company: it.Company.Name(),
			Detail:  "lookup service unavailable, basic analysis",
		})
	}
}

func (r *Run) stepEvent(it *Item, step StepName, status StepStatus, detail string) {
	r.events.publish(Event{
		Kind:     EventStepChanged,
		RowIndex: it.Company.RowIndex,
		Company:  it.Company.Name(),
		Step:     step,
		Status:   status,
		Detail:   detail,
	})
}

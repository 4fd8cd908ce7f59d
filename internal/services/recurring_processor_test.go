package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage/memory"
)

var errTransient = errors.New("database is locked")

type fixedClock struct {
	today core.Date
}

func (c *fixedClock) Today(context.Context, string) (core.Date, error) {
	return c.today, nil
}

// faultyStore wraps the memory store and fails selected calls a given number
// of times.
type faultyStore struct {
	*memory.Store

	mu              sync.Mutex
	listFailures    int
	upsertFailures  int
	instanceListErr map[string]int
	alwaysDuplicate bool
	upsertCalls     int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.New(), instanceListErr: map[string]int{}}
}

func (f *faultyStore) take(n *int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if *n > 0 {
		*n--
		return true
	}
	return false
}

func (f *faultyStore) ListActiveTemplates(ctx context.Context, userID string) ([]core.Template, error) {
	if f.take(&f.listFailures) {
		return nil, errTransient
	}
	return f.Store.ListActiveTemplates(ctx, userID)
}

func (f *faultyStore) ListInstances(ctx context.Context, templateID string) ([]core.Instance, error) {
	f.mu.Lock()
	fail := f.instanceListErr[templateID] > 0
	if fail {
		f.instanceListErr[templateID]--
	}
	f.mu.Unlock()
	if fail {
		return nil, errTransient
	}
	return f.Store.ListInstances(ctx, templateID)
}

func (f *faultyStore) UpsertInstance(ctx context.Context, inst core.Instance) (bool, error) {
	f.mu.Lock()
	f.upsertCalls++
	dup := f.alwaysDuplicate
	f.mu.Unlock()
	if dup {
		return false, core.ErrDuplicateInstance
	}
	if f.take(&f.upsertFailures) {
		return false, errTransient
	}
	return f.Store.UpsertInstance(ctx, inst)
}

type recordingPublisher struct {
	mu   sync.Mutex
	seen []core.Instance
	err  error
}

func (p *recordingPublisher) PublishInstanceCreated(_ context.Context, inst core.Instance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, inst)
	return p.err
}

type countingMetrics struct {
	mu      sync.Mutex
	created int
	failed  map[string]int
	sweeps  int
}

func (m *countingMetrics) InstanceCreated(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *countingMetrics) TemplateFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = map[string]int{}
	}
	m.failed[errorType]++
}

func (m *countingMetrics) SweepCompleted(string, time.Duration, int, int, int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
}

func newTestProcessor(store RecurringStore, clock Clock, opts ...Option) *RecurringProcessor {
	opts = append([]Option{WithLogger(applog.Discard())}, opts...)
	return NewRecurringProcessor(store, clock, ProcessorConfig{Workers: 4, MaxSteps: DefaultMaxSteps}, opts...)
}

func mustCreate(t *testing.T, s interface {
	CreateTemplate(context.Context, *core.Template) error
}, tpl core.Template) core.Template {
	t.Helper()
	tpl.ID = ""
	if err := s.CreateTemplate(context.Background(), &tpl); err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	return tpl
}

func occurrenceDates(t *testing.T, s RecurringStore, templateID string) []string {
	t.Helper()
	instances, err := s.ListInstances(context.Background(), templateID)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(instances))
	for i, inst := range instances {
		// newest first; reverse into chronological order
		out[len(instances)-1-i] = inst.OccurrenceDate.String()
	}
	return out
}

func assertDates(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("dates = %v, want %v", got, want)
	}
}

func TestSweepMonthlyTemplateScenario(t *testing.T) {
	store := memory.New()
	tpl := mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})

	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}
	if report.InstancesCreated != 4 || report.TemplatesProcessed != 1 || report.ErrorCount != 0 {
		t.Fatalf("report = %+v", report)
	}
	assertDates(t, occurrenceDates(t, store, tpl.ID), "2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15")

	instances, _ := store.ListInstances(context.Background(), tpl.ID)
	for _, inst := range instances {
		if inst.Amount.Cents != 5000 || inst.UserID != "u1" || inst.TemplateID != tpl.ID {
			t.Errorf("instance snapshot = %+v", inst)
		}
	}
}

func TestSweepBillScenario(t *testing.T) {
	store := memory.New()
	bill := quarterlyBill()
	bill.Frequency = ""
	bill.StartDate = core.NewDate(2024, 1, 10)
	bill = mustCreate(t, store, bill)

	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 8, 1)})
	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ErrorCount != 0 {
		t.Fatalf("errors = %+v, want none", report.Errors)
	}
	if report.InstancesCreated != 3 {
		t.Fatalf("created = %d, want 3", report.InstancesCreated)
	}

	instances, _ := store.ListInstances(context.Background(), bill.ID)
	wantDue := []string{"2024-07-10", "2024-04-10", "2024-01-10"}
	for i, inst := range instances {
		if inst.DueDate.String() != wantDue[i] {
			t.Errorf("instance %d due = %s, want %s", i, inst.DueDate, wantDue[i])
		}
	}
	if got := instances[0].NextDueDate.String(); got != "2024-10-10" {
		t.Errorf("last instance next due = %s, want 2024-10-10", got)
	}
}

func TestSweepBillUsesOwnDueAnchor(t *testing.T) {
	store := memory.New()
	bill := mustCreate(t, store, quarterlyBill())

	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 8, 1)})
	if _, err := p.SweepAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	instances, _ := store.ListInstances(context.Background(), bill.ID)
	if len(instances) != 3 {
		t.Fatalf("instances = %d, want 3", len(instances))
	}
	for _, inst := range instances {
		occ, due := inst.OccurrenceDate, inst.DueDate
		if occ.Month() != due.Month() || due.Day() != 10 || occ.Day() != 1 {
			t.Errorf("occurrence %s and due %s out of lockstep", occ, due)
		}
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := memory.New()
	mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})

	if _, err := p.SweepAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.InstancesCreated != 0 {
		t.Fatalf("second sweep created %d, want 0", second.InstancesCreated)
	}
	if n := store.InstanceCount(); n != 4 {
		t.Fatalf("instances = %d, want 4", n)
	}
}

func TestSweepCatchesUpMissedPeriods(t *testing.T) {
	tests := []struct {
		name   string
		freq   core.Frequency
		start  core.Date
		first  core.Date
		second core.Date
		want   int
	}{
		{"monthly three missed", core.Monthly, core.NewDate(2024, 1, 15), core.NewDate(2024, 1, 20), core.NewDate(2024, 4, 16), 3},
		{"weekly five missed", core.Weekly, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 5), 5},
		{"daily ten missed", core.Daily, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 11), 10},
		{"yearly over leap day", core.Yearly, core.NewDate(2020, 2, 29), core.NewDate(2020, 3, 1), core.NewDate(2024, 2, 29), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			tpl := monthlyTemplate(tt.start)
			tpl.Frequency = tt.freq
			mustCreate(t, store, tpl)

			clock := &fixedClock{today: tt.first}
			p := newTestProcessor(store, clock)
			if _, err := p.SweepAll(context.Background()); err != nil {
				t.Fatal(err)
			}

			clock.today = tt.second
			report, err := p.SweepAll(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if report.InstancesCreated != tt.want {
				t.Fatalf("catch-up created %d, want %d", report.InstancesCreated, tt.want)
			}
		})
	}
}

func TestSweepMonthEndAcrossLeapYear(t *testing.T) {
	store := memory.New()
	tpl := mustCreate(t, store, monthlyTemplate(core.NewDate(2023, 12, 31)))
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 5, 1)})

	if _, err := p.SweepAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	assertDates(t, occurrenceDates(t, store, tpl.ID),
		"2023-12-31", "2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30")
}

func TestSweepMatchesArithmeticSequenceAcrossManyRuns(t *testing.T) {
	store := memory.New()
	tpl := mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 31)))
	clock := &fixedClock{}
	p := newTestProcessor(store, clock)

	for day := core.NewDate(2024, 1, 1); !day.After(core.NewDate(2024, 12, 31)); day = core.NewDate(day.Year(), int(day.Month()), day.Day()+9) {
		clock.today = day
		if _, err := p.SweepAll(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	got := occurrenceDates(t, store, tpl.ID)
	var want []string
	for n := 0; ; n++ {
		d, _ := core.AddPeriods(tpl.StartDate, core.Monthly, n)
		if d.After(clock.today) {
			break
		}
		want = append(want, d.String())
	}
	assertDates(t, got, want...)
}

func TestSweepDeactivatesEndedTemplate(t *testing.T) {
	store := memory.New()
	tpl := monthlyTemplate(core.NewDate(2024, 1, 15))
	tpl.EndDate = core.NewDate(2024, 3, 1)
	tpl = mustCreate(t, store, tpl)
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})

	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.InstancesCreated != 2 || report.TemplatesDeactivated != 1 {
		t.Fatalf("report = %+v, want 2 created and 1 deactivated", report)
	}
	got, _ := store.GetTemplate(context.Background(), tpl.ID)
	if got.Active {
		t.Fatal("template still active after its end date passed")
	}

	again, _ := p.SweepAll(context.Background())
	if again.TemplatesProcessed != 0 || again.InstancesCreated != 0 {
		t.Fatalf("inactive template was processed again: %+v", again)
	}
}

func TestSweepKeepsTemplateEndingLaterActive(t *testing.T) {
	store := memory.New()
	tpl := monthlyTemplate(core.NewDate(2024, 1, 15))
	tpl.EndDate = core.NewDate(2024, 12, 31)
	tpl = mustCreate(t, store, tpl)
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})

	report, _ := p.SweepAll(context.Background())
	if report.TemplatesDeactivated != 0 {
		t.Fatalf("deactivated = %d, want 0", report.TemplatesDeactivated)
	}
	got, _ := store.GetTemplate(context.Background(), tpl.ID)
	if !got.Active {
		t.Fatal("template deactivated before its end date")
	}
}

func TestSweepOneTimeTemplate(t *testing.T) {
	store := memory.New()
	tpl := monthlyTemplate(core.NewDate(2024, 3, 1))
	tpl.Frequency = core.OneTime
	tpl = mustCreate(t, store, tpl)
	clock := &fixedClock{today: core.NewDate(2024, 2, 1)}
	p := newTestProcessor(store, clock)

	report, _ := p.SweepAll(context.Background())
	if report.InstancesCreated != 0 || report.TemplatesDeactivated != 0 {
		t.Fatalf("future one-time template: %+v", report)
	}

	clock.today = core.NewDate(2024, 4, 1)
	report, _ = p.SweepAll(context.Background())
	if report.InstancesCreated != 1 || report.TemplatesDeactivated != 1 {
		t.Fatalf("due one-time template: %+v", report)
	}
	assertDates(t, occurrenceDates(t, store, tpl.ID), "2024-03-01")
}

func TestSweepIterationCapIsReportedAndResumes(t *testing.T) {
	store := memory.New()
	tpl := monthlyTemplate(core.NewDate(2024, 1, 1))
	tpl.Frequency = core.Daily
	tpl = mustCreate(t, store, tpl)

	p := NewRecurringProcessor(store, &fixedClock{today: core.NewDate(2024, 12, 31)},
		ProcessorConfig{Workers: 1, MaxSteps: 100}, WithLogger(applog.Discard()))

	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.InstancesCreated != 100 || report.ErrorCount != 1 {
		t.Fatalf("report = %+v, want 100 created and 1 error", report)
	}
	if report.Errors[0].Type != applog.ErrorTypeCap || !errors.Is(report.Templates[0].Err(), ErrIterationCap) {
		t.Fatalf("error = %+v, want iteration cap", report.Errors[0])
	}

	// 366 days in 2024; the remaining runs finish the backlog.
	total := report.InstancesCreated
	for i := 0; i < 3; i++ {
		r, _ := p.SweepAll(context.Background())
		total += r.InstancesCreated
	}
	if total != 366 {
		t.Fatalf("total created = %d, want 366", total)
	}
	assertDates(t, occurrenceDates(t, store, tpl.ID)[365:], "2024-12-31")
}

func TestSweepIsolatesInvalidTemplate(t *testing.T) {
	store := memory.New()
	good := mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	bad := monthlyTemplate(core.NewDate(2024, 1, 15))
	bad.Frequency = "every-second-tuesday"
	bad = mustCreate(t, store, bad)
	noStart := monthlyTemplate(core.Date{})
	noStart = mustCreate(t, store, noStart)

	metrics := &countingMetrics{}
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)}, WithMetrics(metrics))

	res, err := p.GenerateForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GenerateForUser() error = %v", err)
	}
	if res.CreatedCount != 4 {
		t.Fatalf("CreatedCount = %d, want 4", res.CreatedCount)
	}
	if !strings.Contains(res.Message, bad.ID) || !strings.Contains(res.Message, noStart.ID) {
		t.Fatalf("message %q does not name the failed templates", res.Message)
	}
	if !strings.Contains(res.Message, "2 of 3 templates") {
		t.Fatalf("message %q does not report partial success", res.Message)
	}
	assertDates(t, occurrenceDates(t, store, good.ID), "2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15")

	if metrics.failed[applog.ErrorTypeValidation] != 2 || metrics.created != 4 || metrics.sweeps != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
}

func TestSweepRetriesTransientStorageErrors(t *testing.T) {
	store := newFaultyStore()
	tpl := mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	store.listFailures = 1
	store.upsertFailures = 1
	store.instanceListErr[tpl.ID] = 1

	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})
	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}
	if report.ErrorCount != 0 || report.InstancesCreated != 4 {
		t.Fatalf("report = %+v, want clean sweep after retries", report)
	}
}

func TestSweepStorageFailureSelfHeals(t *testing.T) {
	store := newFaultyStore()
	tpl := mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})

	// Two consecutive failures on the first write exhaust the retry.
	store.upsertFailures = 2
	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var se *StorageError
	if report.ErrorCount != 1 || !errors.As(report.Templates[0].Err(), &se) {
		t.Fatalf("report = %+v, want one storage error", report)
	}
	if report.Errors[0].Type != applog.ErrorTypeStorage {
		t.Fatalf("error type = %s", report.Errors[0].Type)
	}

	report, _ = p.SweepAll(context.Background())
	if report.InstancesCreated != 4 || report.ErrorCount != 0 {
		t.Fatalf("next sweep = %+v, want all 4 instances", report)
	}
	assertDates(t, occurrenceDates(t, store, tpl.ID), "2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15")
}

func TestSweepAbortsWhenTemplatesCannotBeListed(t *testing.T) {
	store := newFaultyStore()
	mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	store.listFailures = 2

	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})
	_, err := p.SweepAll(context.Background())
	var se *StorageError
	if !errors.As(err, &se) || !errors.Is(err, errTransient) {
		t.Fatalf("SweepAll() error = %v, want StorageError", err)
	}

	if _, err := p.GenerateForUser(context.Background(), "u1"); err != nil {
		t.Fatalf("store recovered but GenerateForUser() error = %v", err)
	}
}

func TestSweepTreatsDuplicateKeyAsSkipped(t *testing.T) {
	store := newFaultyStore()
	mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	store.alwaysDuplicate = true

	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})
	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.ErrorCount != 0 || report.InstancesSkipped != 4 || report.InstancesCreated != 0 {
		t.Fatalf("report = %+v, want 4 skipped and no errors", report)
	}
	if store.upsertCalls != 4 {
		t.Fatalf("upsert calls = %d, duplicates must not be retried", store.upsertCalls)
	}
}

func TestConcurrentSweepsCreateNoDuplicates(t *testing.T) {
	store := memory.New()
	var ids []string
	for _, user := range []string{"u1", "u2", "u3"} {
		tpl := monthlyTemplate(core.NewDate(2023, 1, 1))
		tpl.UserID = user
		ids = append(ids, mustCreate(t, store, tpl).ID)
		weekly := monthlyTemplate(core.NewDate(2024, 1, 1))
		weekly.UserID = user
		weekly.Frequency = core.Weekly
		ids = append(ids, mustCreate(t, store, weekly).ID)
	}
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = p.SweepAll(context.Background())
			} else {
				_, err = p.GenerateForUser(context.Background(), "u2")
			}
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// 16 monthly (2023-01-01 .. 2024-04-01) + 16 weekly (2024-01-01 .. 2024-04-15) per user.
	if n := store.InstanceCount(); n != 3*(16+16) {
		t.Fatalf("instances = %d, want %d", n, 3*(16+16))
	}
	for _, id := range ids {
		dates := occurrenceDates(t, store, id)
		seen := map[string]bool{}
		for _, d := range dates {
			if seen[d] {
				t.Fatalf("template %s has duplicate occurrence %s", id, d)
			}
			seen[d] = true
		}
	}
}

func TestSweepUserOnlyTouchesThatUser(t *testing.T) {
	store := memory.New()
	mine := mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	other := monthlyTemplate(core.NewDate(2024, 1, 15))
	other.UserID = "u2"
	other = mustCreate(t, store, other)

	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})
	report, err := p.SweepUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if report.Scope != "u1" || len(report.Users) != 1 || report.Users[0].Created != 4 {
		t.Fatalf("report = %+v", report)
	}
	if len(occurrenceDates(t, store, mine.ID)) != 4 || len(occurrenceDates(t, store, other.ID)) != 0 {
		t.Fatal("on-demand sweep leaked into another user's templates")
	}

	if _, err := p.SweepUser(context.Background(), " "); !errors.Is(err, core.ErrEmptyUser) {
		t.Fatalf("SweepUser(blank) error = %v, want ErrEmptyUser", err)
	}
}

func TestSweepPublishesCreatedInstances(t *testing.T) {
	store := memory.New()
	mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	pub := &recordingPublisher{err: errors.New("broker down")}
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)}, WithPublisher(pub))

	report, err := p.SweepAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.InstancesCreated != 4 || report.ErrorCount != 0 {
		t.Fatalf("publish failures must not fail generation: %+v", report)
	}
	if len(pub.seen) != 4 {
		t.Fatalf("published %d instances, want 4", len(pub.seen))
	}

	_, _ = p.SweepAll(context.Background())
	if len(pub.seen) != 4 {
		t.Fatalf("idempotent sweep published again: %d", len(pub.seen))
	}
}

func TestGenerateForUserMessage(t *testing.T) {
	store := memory.New()
	mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 4, 15)))
	p := newTestProcessor(store, &fixedClock{today: core.NewDate(2024, 4, 20)})

	res, err := p.GenerateForUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.CreatedCount != 1 || res.Message != "Generated 1 recurring entry" {
		t.Fatalf("result = %+v", res)
	}

	res, _ = p.GenerateForUser(context.Background(), "u1")
	if res.CreatedCount != 0 || res.Message != "No new recurring entries were due" {
		t.Fatalf("result = %+v", res)
	}
}

func TestEditedTemplateDoesNotRewriteInstances(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tpl := mustCreate(t, store, monthlyTemplate(core.NewDate(2024, 1, 15)))
	clock := &fixedClock{today: core.NewDate(2024, 2, 20)}
	p := newTestProcessor(store, clock)
	_, _ = p.SweepAll(ctx)

	tpl.Amount = core.Money{Cents: 7500}
	if err := store.UpdateTemplate(ctx, tpl); err != nil {
		t.Fatal(err)
	}
	clock.today = core.NewDate(2024, 3, 20)
	_, _ = p.SweepAll(ctx)

	instances, _ := store.ListInstances(ctx, tpl.ID)
	amounts := map[string]int64{}
	for _, inst := range instances {
		amounts[inst.OccurrenceDate.String()] = inst.Amount.Cents
	}
	if amounts["2024-01-15"] != 5000 || amounts["2024-02-15"] != 5000 || amounts["2024-03-15"] != 7500 {
		t.Fatalf("amounts = %v", amounts)
	}
}

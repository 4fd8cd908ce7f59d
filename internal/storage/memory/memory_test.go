package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fintrack/internal/core"
)

func newTemplate(userID string) *core.Template {
	return &core.Template{
		UserID:          userID,
		Kind:            core.KindTransaction,
		Frequency:       core.Monthly,
		StartDate:       core.NewDate(2024, 1, 15),
		Active:          true,
		AutoMaterialize: true,
		Description:     "rent",
		Amount:          core.Money{Cents: 5000},
	}
}

func TestUpsertInstanceIsKeyedByTemplateDateUser(t *testing.T) {
	ctx := context.Background()
	s := New()
	tpl := newTemplate("u1")
	if err := s.CreateTemplate(ctx, tpl); err != nil {
		t.Fatal(err)
	}

	inst := core.NewInstance(*tpl, core.NewDate(2024, 1, 15))
	created, err := s.UpsertInstance(ctx, inst)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	created, err = s.UpsertInstance(ctx, inst)
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v, want false/nil", created, err)
	}

	err = s.InsertInstance(ctx, &inst)
	if !errors.Is(err, core.ErrDuplicateInstance) {
		t.Fatalf("InsertInstance() error = %v, want ErrDuplicateInstance", err)
	}
	if n := s.InstanceCount(); n != 1 {
		t.Fatalf("InstanceCount() = %d, want 1", n)
	}
}

func TestListInstancesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	tpl := newTemplate("u1")
	_ = s.CreateTemplate(ctx, tpl)

	for _, d := range []core.Date{core.NewDate(2024, 2, 15), core.NewDate(2024, 1, 15), core.NewDate(2024, 3, 15)} {
		if _, err := s.UpsertInstance(ctx, core.NewInstance(*tpl, d)); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := s.ListInstances(ctx, tpl.ID)
	if len(got) != 3 {
		t.Fatalf("ListInstances() len = %d, want 3", len(got))
	}
	if !got[0].OccurrenceDate.Equal(core.NewDate(2024, 3, 15)) || !got[2].OccurrenceDate.Equal(core.NewDate(2024, 1, 15)) {
		t.Fatalf("unexpected order: %s, %s, %s", got[0].OccurrenceDate, got[1].OccurrenceDate, got[2].OccurrenceDate)
	}
}

func TestListActiveTemplatesFilters(t *testing.T) {
	ctx := context.Background()
	s := New()

	active := newTemplate("u1")
	inactive := newTemplate("u1")
	inactive.Active = false
	manual := newTemplate("u1")
	manual.AutoMaterialize = false
	other := newTemplate("u2")
	for _, tpl := range []*core.Template{active, inactive, manual, other} {
		if err := s.CreateTemplate(ctx, tpl); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := s.ListActiveTemplates(ctx, "")
	if len(all) != 2 {
		t.Fatalf("ListActiveTemplates(all) = %d, want 2", len(all))
	}
	mine, _ := s.ListActiveTemplates(ctx, "u1")
	if len(mine) != 1 || mine[0].ID != active.ID {
		t.Fatalf("ListActiveTemplates(u1) = %+v", mine)
	}

	if err := s.SetTemplateActive(ctx, active.ID, false); err != nil {
		t.Fatal(err)
	}
	mine, _ = s.ListActiveTemplates(ctx, "u1")
	if len(mine) != 0 {
		t.Fatalf("deactivated template still listed")
	}
}

func TestDeleteTemplateCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	tpl := newTemplate("u1")
	_ = s.CreateTemplate(ctx, tpl)
	_, _ = s.UpsertInstance(ctx, core.NewInstance(*tpl, core.NewDate(2024, 1, 15)))

	if err := s.DeleteTemplate(ctx, "someone-else", tpl.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("DeleteTemplate() by non-owner error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteTemplate(ctx, "u1", tpl.ID); err != nil {
		t.Fatal(err)
	}
	if n := s.InstanceCount(); n != 0 {
		t.Fatalf("InstanceCount() after cascade = %d, want 0", n)
	}

	// The key is free again once the instance is gone.
	created, _ := s.UpsertInstance(ctx, core.NewInstance(*tpl, core.NewDate(2024, 1, 15)))
	if !created {
		t.Fatal("expected key to be reusable after cascade delete")
	}
}

func TestConcurrentUpsertCreatesOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	tpl := newTemplate("u1")
	_ = s.CreateTemplate(ctx, tpl)
	inst := core.NewInstance(*tpl, core.NewDate(2024, 1, 15))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpsertInstance(ctx, inst)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created = %d, want exactly 1", created)
	}
}

func TestUserTimezone(t *testing.T) {
	ctx := context.Background()
	s := New()
	tz, err := s.UserTimezone(ctx, "u1")
	if err != nil || tz != "" {
		t.Fatalf("UserTimezone() = %q, %v; want empty", tz, err)
	}
	_ = s.SetUserTimezone(ctx, "u1", "Pacific/Auckland")
	if tz, _ := s.UserTimezone(ctx, "u1"); tz != "Pacific/Auckland" {
		t.Fatalf("UserTimezone() = %q", tz)
	}
}

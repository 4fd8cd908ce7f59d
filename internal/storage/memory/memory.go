// Package memory is a process-local store with the same semantics as the
// SQLite repository, including the per-occurrence unique key.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

type instanceKey struct {
	templateID string
	date       string
	userID     string
}

type Store struct {
	mu        sync.Mutex
	templates map[string]core.Template
	instances map[string]core.Instance
	keys      map[instanceKey]string
	timezones map[string]string
}

func New() *Store {
	return &Store{
		templates: make(map[string]core.Template),
		instances: make(map[string]core.Instance),
		keys:      make(map[instanceKey]string),
		timezones: make(map[string]string),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateTemplate(_ context.Context, t *core.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, ok := s.templates[t.ID]; ok {
		return fmt.Errorf("template %s already exists", t.ID)
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	s.templates[t.ID] = *t
	return nil
}

func (s *Store) UpdateTemplate(_ context.Context, t core.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.templates[t.ID]
	if !ok || cur.UserID != t.UserID {
		return fmt.Errorf("template %s: %w", t.ID, core.ErrNotFound)
	}
	t.Kind = cur.Kind
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	s.templates[t.ID] = t
	return nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (core.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return core.Template{}, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) ListTemplates(_ context.Context, userID string) ([]core.Template, error) {
	return s.filterTemplates(func(t core.Template) bool { return t.UserID == userID }), nil
}

// ListActiveTemplates lists active auto-materializing templates; an empty
// userID means every user.
func (s *Store) ListActiveTemplates(_ context.Context, userID string) ([]core.Template, error) {
	return s.filterTemplates(func(t core.Template) bool {
		return t.Active && t.AutoMaterialize && (userID == "" || t.UserID == userID)
	}), nil
}

func (s *Store) SetTemplateActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	t.Active = active
	t.UpdatedAt = time.Now().UTC()
	s.templates[id] = t
	return nil
}

// DeleteTemplate removes the template and cascades to its instances.
func (s *Store) DeleteTemplate(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.UserID != userID {
		return fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	delete(s.templates, id)
	for instID, inst := range s.instances {
		if inst.TemplateID == id {
			s.removeInstance(instID, inst)
		}
	}
	return nil
}

// ListInstances returns a template's instances, newest occurrence first.
func (s *Store) ListInstances(_ context.Context, templateID string) ([]core.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Instance
	for _, inst := range s.instances {
		if inst.TemplateID == templateID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurrenceDate.After(out[j].OccurrenceDate)
	})
	return out, nil
}

func (s *Store) GetInstance(_ context.Context, id string) (core.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return core.Instance{}, fmt.Errorf("instance %s: %w", id, core.ErrNotFound)
	}
	return inst, nil
}

// UpsertInstance stores inst unless its key is taken and reports whether it
// was created.
func (s *Store) UpsertInstance(_ context.Context, inst core.Instance) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.keys[keyOf(inst)]; taken {
		return false, nil
	}
	s.putInstance(&inst)
	return true, nil
}

func (s *Store) InsertInstance(_ context.Context, inst *core.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.keys[keyOf(*inst)]; taken {
		return fmt.Errorf("instance %s@%s: %w", inst.TemplateID, inst.OccurrenceDate, core.ErrDuplicateInstance)
	}
	s.putInstance(inst)
	return nil
}

func (s *Store) DeleteInstance(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok || inst.UserID != userID {
		return fmt.Errorf("instance %s: %w", id, core.ErrNotFound)
	}
	s.removeInstance(id, inst)
	return nil
}

func (s *Store) SetUserTimezone(_ context.Context, userID, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timezones[userID] = timezone
	return nil
}

func (s *Store) UserTimezone(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timezones[userID], nil
}

// InstanceCount returns the number of stored instances across all templates.
func (s *Store) InstanceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instances)
}

func (s *Store) filterTemplates(keep func(core.Template) bool) []core.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Template
	for _, t := range s.templates {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) putInstance(inst *core.Instance) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}
	s.instances[inst.ID] = *inst
	s.keys[keyOf(*inst)] = inst.ID
}

func (s *Store) removeInstance(id string, inst core.Instance) {
	delete(s.instances, id)
	delete(s.keys, keyOf(inst))
}

func keyOf(inst core.Instance) instanceKey {
	return instanceKey{templateID: inst.TemplateID, date: inst.OccurrenceDate.String(), userID: inst.UserID}
}

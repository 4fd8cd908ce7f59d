package http

import (
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
)

type templateResponse struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	Kind            string `json:"kind"`
	Frequency       string `json:"frequency"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate,omitempty"`
	Active          bool   `json:"active"`
	AutoMaterialize bool   `json:"autoMaterialize"`
	Description     string `json:"description"`
	AmountCents     int64  `json:"amountCents"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency,omitempty"`
	Category        string `json:"category,omitempty"`

	DueDate       string `json:"dueDate,omitempty"`
	BillFrequency string `json:"billFrequency,omitempty"`
	LastPaidDate  string `json:"lastPaidDate,omitempty"`
	Status        string `json:"status,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type instanceResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	TemplateID     string    `json:"templateId"`
	Kind           string    `json:"kind"`
	OccurrenceDate string    `json:"occurrenceDate"`
	Description    string    `json:"description"`
	AmountCents    int64     `json:"amountCents"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency,omitempty"`
	Category       string    `json:"category,omitempty"`
	DueDate        string    `json:"dueDate,omitempty"`
	NextDueDate    string    `json:"nextDueDate,omitempty"`
	Status         string    `json:"status,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newTemplateResponse(t core.Template) templateResponse {
	return templateResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Kind:            string(t.Kind),
		Frequency:       string(t.Frequency),
		StartDate:       t.StartDate.String(),
		EndDate:         t.EndDate.String(),
		Active:          t.Active,
		AutoMaterialize: t.AutoMaterialize,
		Description:     t.Description,
		AmountCents:     t.Amount.Cents,
		Amount:          t.Amount.String(),
		Currency:        t.Currency,
		Category:        t.Category,
		DueDate:         t.DueDate.String(),
		BillFrequency:   string(t.BillFrequency),
		LastPaidDate:    t.LastPaidDate.String(),
		Status:          string(t.Status),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func newInstanceResponse(inst core.Instance) instanceResponse {
	return instanceResponse{
		ID:             inst.ID,
		UserID:         inst.UserID,
		TemplateID:     inst.TemplateID,
		Kind:           string(inst.Kind),
		OccurrenceDate: inst.OccurrenceDate.String(),
		Description:    inst.Description,
		AmountCents:    inst.Amount.Cents,
		Amount:         inst.Amount.String(),
		Currency:       inst.Currency,
		Category:       inst.Category,
		DueDate:        inst.DueDate.String(),
		NextDueDate:    inst.NextDueDate.String(),
		Status:         string(inst.Status),
		CreatedAt:      inst.CreatedAt,
	}
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := req.toTemplate()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.templates.CreateTemplate(r.Context(), userIDFrom(r), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse(newTemplateResponse(created)).
		Status(http.StatusCreated).
		Header("Location", r.URL.Path+"/"+created.ID).
		Write(w)
}

// handleUpdateTemplate replaces a template's editable fields. Omitted
// optional fields are cleared, as with creation.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := req.toTemplate()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.templates.UpdateTemplate(r.Context(), userIDFrom(r), r.PathValue("id"), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse(newTemplateResponse(updated)).Write(w)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListTemplates(r.Context(), userIDFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, newTemplateResponse(t))
	}
	NewJSONResponse(map[string]any{"templates": out}).Write(w)
}

// handleDeleteTemplate removes a template together with its instances.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.DeleteTemplate(r.Context(), userIDFrom(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse(nil).Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := s.templates.ListInstances(r.Context(), userIDFrom(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]instanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, newInstanceResponse(inst))
	}
	NewJSONResponse(map[string]any{"instances": out}).Write(w)
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := req.date()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	inst, err := s.templates.CreateInstance(r.Context(), userIDFrom(r), r.PathValue("id"), date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse(newInstanceResponse(inst)).Status(http.StatusCreated).Write(w)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.DeleteInstance(r.Context(), userIDFrom(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse(nil).Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSetTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := userIDFrom(r)
	tz := strings.TrimSpace(req.Timezone)
	if err := s.templates.SetTimezone(r.Context(), userID, tz); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse(map[string]string{"userId": userID, "timezone": tz}).Write(w)
}

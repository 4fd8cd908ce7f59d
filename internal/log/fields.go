package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldUserID         = "user_id"
	FieldTemplateID     = "template_id"
	FieldInstanceID     = "instance_id"
	FieldKind           = "kind"
	FieldFrequency      = "frequency"
	FieldOccurrenceDate = "occurrence_date"
	FieldDueDate        = "due_date"
	FieldBoundary       = "boundary"
	FieldAmountCents    = "amount_cents"
	FieldScope          = "scope"
	FieldState          = "state"
	FieldCreated        = "created"
	FieldSkipped        = "skipped"
	FieldErrors         = "errors"
	FieldDuration       = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecurring = "recurring"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentScheduler = "scheduler"
)

// Operations defines standard operation names
const (
	OpSweep       = "sweep"
	OpMaterialize = "materialize"
	OpDeactivate  = "deactivate"
	OpListTpl     = "list_templates"
	OpListInst    = "list_instances"
	OpToday       = "today"
	OpExport      = "export"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeStorage    = "storage_error"
	ErrorTypeCap        = "iteration_cap"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTemplate adds the identifiers every per-template record carries
func (f LogFields) WithTemplate(templateID, userID string) LogFields {
	f[FieldTemplateID] = templateID
	f[FieldUserID] = userID
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

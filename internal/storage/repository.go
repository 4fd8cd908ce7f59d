package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Pragmas applied to every connection. Foreign keys must be on for the
// template -> instance cascade.
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

const timestampLayout = time.RFC3339Nano

const templateColumns = `id, user_id, kind, frequency, start_date, end_date, active, auto_materialize,
	description, amount_cents, currency, category, due_date, bill_frequency, last_paid_date, status,
	created_at, updated_at`

const instanceColumns = `id, user_id, template_id, kind, occurrence_date, description, amount_cents,
	currency, category, due_date, next_due_date, status, created_at`

// Instances are never updated, so updated_at is written once with created_at.
const instanceInsertColumns = instanceColumns + `, updated_at, is_template`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?" + pragmas

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateTemplate stores a new template. An empty ID is replaced with a UUID.
func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t *core.Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (`+templateColumns+`, is_template)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		t.ID, t.UserID, string(t.Kind), string(t.Frequency),
		nullDate(t.StartDate), nullDate(t.EndDate), t.Active, t.AutoMaterialize,
		t.Description, t.Amount.Cents, t.Currency, t.Category,
		nullDate(t.DueDate), nullString(string(t.BillFrequency)), nullDate(t.LastPaidDate), string(t.Status),
		now.Format(timestampLayout), now.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}

	slog.InfoContext(ctx, "Template saved to SQLite",
		"template_id", t.ID,
		"user_id", t.UserID,
		"kind", t.Kind,
		"frequency", t.Frequency)
	return nil
}

// UpdateTemplate rewrites a template's user-editable fields. Existing
// instances are snapshots and are not touched.
func (r *SQLiteRepository) UpdateTemplate(ctx context.Context, t core.Template) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE entries SET
			frequency = ?, start_date = ?, end_date = ?, active = ?, auto_materialize = ?,
			description = ?, amount_cents = ?, currency = ?, category = ?,
			due_date = ?, bill_frequency = ?, last_paid_date = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND is_template = 1`,
		string(t.Frequency), nullDate(t.StartDate), nullDate(t.EndDate), t.Active, t.AutoMaterialize,
		t.Description, t.Amount.Cents, t.Currency, t.Category,
		nullDate(t.DueDate), nullString(string(t.BillFrequency)), nullDate(t.LastPaidDate), string(t.Status),
		time.Now().UTC().Format(timestampLayout),
		t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update template %s: %w", t.ID, err)
	}
	return expectOneRow(res, "template", t.ID)
}

func (r *SQLiteRepository) GetTemplate(ctx context.Context, id string) (core.Template, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM entries WHERE id = ? AND is_template = 1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Template{}, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Template{}, fmt.Errorf("get template %s: %w", id, err)
	}
	return t, nil
}

// ListTemplates returns every template owned by userID, active or not.
func (r *SQLiteRepository) ListTemplates(ctx context.Context, userID string) ([]core.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM entries
		WHERE is_template = 1 AND user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return collectTemplates(rows)
}

// ListActiveTemplates returns active, auto-materializing templates. An
// empty userID lists them for every user.
func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context, userID string) ([]core.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM entries
		WHERE is_template = 1 AND active = 1 AND auto_materialize = 1
		  AND (? = '' OR user_id = ?)
		ORDER BY user_id, created_at, id`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	return collectTemplates(rows)
}

func (r *SQLiteRepository) SetTemplateActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entries SET active = ?, updated_at = ? WHERE id = ? AND is_template = 1`,
		active, time.Now().UTC().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("set template %s active=%t: %w", id, active, err)
	}
	return expectOneRow(res, "template", id)
}

// DeleteTemplate removes a template owned by userID together with all of its
// instances.
func (r *SQLiteRepository) DeleteTemplate(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND user_id = ? AND is_template = 1`, id, userID)
	if err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	if err := expectOneRow(res, "template", id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Template deleted", "template_id", id, "user_id", userID)
	return nil
}

// ListInstances returns a template's instances, newest occurrence first.
func (r *SQLiteRepository) ListInstances(ctx context.Context, templateID string) ([]core.Instance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM entries
		WHERE is_template = 0 AND template_id = ?
		ORDER BY occurrence_date DESC`, templateID)
	if err != nil {
		return nil, fmt.Errorf("list instances for template %s: %w", templateID, err)
	}
	defer rows.Close()

	var out []core.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetInstance(ctx context.Context, id string) (core.Instance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM entries WHERE id = ? AND is_template = 0`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Instance{}, fmt.Errorf("instance %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Instance{}, fmt.Errorf("get instance %s: %w", id, err)
	}
	return inst, nil
}

// UpsertInstance inserts inst unless an instance with the same template,
// occurrence date and user already exists. It reports whether a row was
// created; a lost race on the unique index is not an error.
func (r *SQLiteRepository) UpsertInstance(ctx context.Context, inst core.Instance) (bool, error) {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (`+instanceInsertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (template_id, occurrence_date, user_id) WHERE is_template = 0 DO NOTHING`,
		instanceArgs(inst)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("upsert instance %s@%s: %w", inst.TemplateID, inst.OccurrenceDate, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert instance rows affected: %w", err)
	}
	return n == 1, nil
}

// InsertInstance inserts inst without conflict handling. A duplicate
// (template, occurrence date, user) key yields core.ErrDuplicateInstance.
func (r *SQLiteRepository) InsertInstance(ctx context.Context, inst *core.Instance) error {
	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (`+instanceInsertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		instanceArgs(*inst)...,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("instance %s@%s: %w", inst.TemplateID, inst.OccurrenceDate, core.ErrDuplicateInstance)
	}
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// DeleteInstance removes a single instance owned by userID. The template is
// not affected.
func (r *SQLiteRepository) DeleteInstance(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = ? AND user_id = ? AND is_template = 0`, id, userID)
	if err != nil {
		return fmt.Errorf("delete instance %s: %w", id, err)
	}
	return expectOneRow(res, "instance", id)
}

// SetUserTimezone records the IANA timezone name used for userID's "today".
func (r *SQLiteRepository) SetUserTimezone(ctx context.Context, userID, timezone string) error {
	now := time.Now().UTC().Format(timestampLayout)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, timezone, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET timezone = excluded.timezone, updated_at = excluded.updated_at`,
		userID, timezone, now, now)
	if err != nil {
		return fmt.Errorf("set timezone for user %s: %w", userID, err)
	}
	return nil
}

// UserTimezone returns the stored timezone name, or "" when none is set.
func (r *SQLiteRepository) UserTimezone(ctx context.Context, userID string) (string, error) {
	var tz string
	err := r.db.QueryRowContext(ctx, `SELECT timezone FROM users WHERE id = ?`, userID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get timezone for user %s: %w", userID, err)
	}
	return tz, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s rowScanner) (core.Template, error) {
	var t core.Template
	var kind, freq, status, createdAt, updatedAt string
	var startDate, endDate, dueDate, lastPaid, billF sql.NullString
	err := s.Scan(&t.ID, &t.UserID, &kind, &freq, &startDate, &endDate, &t.Active, &t.AutoMaterialize,
		&t.Description, &t.Amount.Cents, &t.Currency, &t.Category, &dueDate, &billF, &lastPaid, &status,
		&createdAt, &updatedAt)
	if err != nil {
		return core.Template{}, err
	}

	t.Kind = core.EntryKind(kind)
	t.Frequency = core.Frequency(freq)
	t.BillFrequency = core.Frequency(billF.String)
	t.Status = core.BillStatus(status)

	if t.StartDate, err = core.ParseDate(startDate.String); err != nil {
		return core.Template{}, err
	}
	if t.EndDate, err = core.ParseDate(endDate.String); err != nil {
		return core.Template{}, err
	}
	if t.DueDate, err = core.ParseDate(dueDate.String); err != nil {
		return core.Template{}, err
	}
	if t.LastPaidDate, err = core.ParseDate(lastPaid.String); err != nil {
		return core.Template{}, err
	}
	t.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	t.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	return t, nil
}

func scanInstance(s rowScanner) (core.Instance, error) {
	var inst core.Instance
	var kind, status, createdAt string
	var templateID, occurrence, dueDate, nextDue sql.NullString
	err := s.Scan(&inst.ID, &inst.UserID, &templateID, &kind, &occurrence, &inst.Description,
		&inst.Amount.Cents, &inst.Currency, &inst.Category, &dueDate, &nextDue, &status, &createdAt)
	if err != nil {
		return core.Instance{}, err
	}

	inst.TemplateID = templateID.String
	inst.Kind = core.EntryKind(kind)
	inst.Status = core.BillStatus(status)

	if inst.OccurrenceDate, err = core.ParseDate(occurrence.String); err != nil {
		return core.Instance{}, err
	}
	if inst.DueDate, err = core.ParseDate(dueDate.String); err != nil {
		return core.Instance{}, err
	}
	if inst.NextDueDate, err = core.ParseDate(nextDue.String); err != nil {
		return core.Instance{}, err
	}
	inst.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	return inst, nil
}

func collectTemplates(rows *sql.Rows) ([]core.Template, error) {
	defer rows.Close()

	var out []core.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

func instanceArgs(inst core.Instance) []any {
	created := inst.CreatedAt.UTC().Format(timestampLayout)
	return []any{
		inst.ID, inst.UserID, nullString(inst.TemplateID), string(inst.Kind), nullDate(inst.OccurrenceDate),
		inst.Description, inst.Amount.Cents, inst.Currency, inst.Category,
		nullDate(inst.DueDate), nullDate(inst.NextDueDate), string(inst.Status),
		created, created,
	}
}

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s rows affected: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

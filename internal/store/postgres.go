package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/models"
)

// PostgresFormStore persists forms with their field list as JSONB.
type PostgresFormStore struct {
	db *sql.DB
}

func NewPostgresFormStore(db *sql.DB) *PostgresFormStore {
	return &PostgresFormStore{db: db}
}

const formColumns = `id, name, description, category, fields, created_at, updated_at`

func (s *PostgresFormStore) Create(ctx context.Context, form *models.FormDefinition) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return errors.NewStorageWriteFailedError("form", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO forms (`+formColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		form.ID, form.Name, form.Description, form.Category, fields, form.CreatedAt, form.UpdatedAt,
	)
	if err != nil {
		return errors.NewStorageWriteFailedError("form", err)
	}
	return nil
}

func (s *PostgresFormStore) Replace(ctx context.Context, form *models.FormDefinition) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return errors.NewStorageWriteFailedError("form", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE forms SET name = $2, description = $3, category = $4, fields = $5, updated_at = $6 WHERE id = $1`,
		form.ID, form.Name, form.Description, form.Category, fields, form.UpdatedAt,
	)
	if err != nil {
		return errors.NewStorageWriteFailedError("form", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewFormNotFoundError(form.ID)
	}
	return nil
}

func (s *PostgresFormStore) Get(ctx context.Context, id string) (*models.FormDefinition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id)
	form, err := scanForm(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewFormNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get form", err)
	}
	return form, nil
}

func (s *PostgresFormStore) List(ctx context.Context) ([]*models.FormDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+formColumns+` FROM forms ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list forms", err)
	}
	defer rows.Close()

	forms := []*models.FormDefinition{}
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError("scan form", err)
		}
		forms = append(forms, form)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list forms", err)
	}
	return forms, nil
}

func (s *PostgresFormStore) Latest(ctx context.Context) (*models.FormDefinition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms ORDER BY created_at DESC LIMIT 1`)
	form, err := scanForm(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewFormNotFoundError("latest")
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("latest form", err)
	}
	return form, nil
}

func (s *PostgresFormStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return errors.NewStorageWriteFailedError("form deletion", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewFormNotFoundError(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanForm(row scanner) (*models.FormDefinition, error) {
	var form models.FormDefinition
	var fields []byte
	if err := row.Scan(&form.ID, &form.Name, &form.Description, &form.Category, &fields, &form.CreatedAt, &form.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &form.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of form %s: %w", form.ID, err)
	}
	return &form, nil
}

// PostgresSubmissionStore persists submissions with their ordered entries
// as JSONB. Status changes are conditional updates, optionally audited.
type PostgresSubmissionStore struct {
	db     *sql.DB
	audit  bool
	logger logger.Logger
}

func NewPostgresSubmissionStore(db *sql.DB, audit bool, log logger.Logger) *PostgresSubmissionStore {
	return &PostgresSubmissionStore{db: db, audit: audit, logger: log}
}

const submissionColumns = `id, form_id, form_name, entries, submitted_at, status`

func (s *PostgresSubmissionStore) Save(ctx context.Context, sub *models.Submission) error {
	entries, err := json.Marshal(sub.Entries)
	if err != nil {
		return errors.NewStorageWriteFailedError("submission", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.ID, sub.FormID, sub.FormName, entries, sub.SubmittedAt, string(sub.Status),
	)
	if err != nil {
		return errors.NewStorageWriteFailedError("submission", err)
	}
	return nil
}

func (s *PostgresSubmissionStore) Get(ctx context.Context, id string) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewSubmissionNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get submission", err)
	}
	return sub, nil
}

func (s *PostgresSubmissionStore) List(ctx context.Context, filter models.SubmissionFilter) ([]*models.Submission, error) {
	var where []string
	var args []interface{}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.FormID != "" {
		add("form_id = $%d", filter.FormID)
	}
	if filter.FormName != "" {
		add("form_name = $%d", filter.FormName)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY submitted_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list submissions", err)
	}
	defer rows.Close()

	subs := []*models.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError("scan submission", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list submissions", err)
	}
	return subs, nil
}

func (s *PostgresSubmissionStore) CompareAndSetStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.NewDatabaseQueryFailedError("begin transition", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE submissions SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return false, errors.NewStorageWriteFailedError("status", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStorageWriteFailedError("status", err)
	}
	if n == 0 {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = $1`, id).Scan(&current)
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, errors.NewSubmissionNotFoundError(id)
		}
		if err != nil {
			return false, errors.NewDatabaseQueryFailedError("read status", err)
		}
		return false, nil
	}

	if s.audit {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submission_audit (submission_id, from_status, to_status) VALUES ($1, $2, $3)`,
			id, string(from), string(to),
		); err != nil {
			return false, errors.NewStorageWriteFailedError("status audit", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, errors.NewStorageWriteFailedError("status", err)
	}
	return true, nil
}

func (s *PostgresSubmissionStore) DeleteByForm(ctx context.Context, formID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE form_id = $1`, formID)
	if err != nil {
		return 0, errors.NewStorageWriteFailedError("submission deletion", err)
	}
	n, _ := res.RowsAffected()
	if s.logger != nil {
		s.logger.Info("Deleted submissions of form", map[string]interface{}{
			"formId": formID,
			"count":  n,
		})
	}
	return int(n), nil
}

func (s *PostgresSubmissionStore) Stats(ctx context.Context) (*models.SubmissionStats, error) {
	stats := &models.SubmissionStats{ByStatus: map[models.SubmissionStatus]int{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("count by status", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, errors.NewDatabaseQueryFailedError("count by status", err)
		}
		stats.ByStatus[models.SubmissionStatus(status)] = count
		stats.Total += count
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT form_id, MAX(form_name), COUNT(*) FROM submissions GROUP BY form_id ORDER BY COUNT(*) DESC, form_id`)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("count by form", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fc models.FormCount
		if err := rows.Scan(&fc.FormID, &fc.FormName, &fc.Count); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("count by form", err)
		}
		stats.ByForm = append(stats.ByForm, fc)
	}
	return stats, rows.Err()
}

func scanSubmission(row scanner) (*models.Submission, error) {
	var sub models.Submission
	var entries []byte
	var status string
	if err := row.Scan(&sub.ID, &sub.FormID, &sub.FormName, &entries, &sub.SubmittedAt, &status); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(entries, &sub.Entries); err != nil {
		return nil, fmt.Errorf("decode entries of submission %s: %w", sub.ID, err)
	}
	sub.Status = models.SubmissionStatus(status)
	sub.SubmittedAt = sub.SubmittedAt.UTC()
	return &sub, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/learning-journey-api/internal/models"
)

const recordColumns = "id, student_id, author_id, note, value_tag, assessment_type, is_flagged_for_report, file_url, created_at, updated_at"

// RecordRepository manages persistence for anecdotal observation records.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs a new repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// List returns observation records per provided filter with total count.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.AnecdotalRecord, int, error) {
	base := "FROM anecdotal_records"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.StudentIDs) > 0 {
		where = append(where, fmt.Sprintf("student_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.StudentIDs))
	}
	if filter.AuthorID != "" {
		where = append(where, fmt.Sprintf("author_id = $%d", len(args)+1))
		args = append(args, filter.AuthorID)
	}
	if filter.ValueTag != "" {
		where = append(where, fmt.Sprintf("value_tag = $%d", len(args)+1))
		args = append(args, filter.ValueTag)
	}
	if filter.Flagged != nil {
		where = append(where, fmt.Sprintf("is_flagged_for_report = $%d", len(args)+1))
		args = append(args, *filter.Flagged)
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size
	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		recordColumns, base, whereClause, size, offset)
	var records []models.AnecdotalRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}
	return records, total, nil
}

// ListByStudent returns every record for one student, newest first.
func (r *RecordRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM anecdotal_records WHERE student_id = $1 ORDER BY created_at DESC, id DESC`, recordColumns)
	var records []models.AnecdotalRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list records by student: %w", err)
	}
	return records, nil
}

// ListFlaggedByStudent returns the records a teacher marked for report
// inclusion, newest first.
func (r *RecordRepository) ListFlaggedByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM anecdotal_records
WHERE student_id = $1 AND is_flagged_for_report = TRUE ORDER BY created_at DESC, id DESC`, recordColumns)
	var records []models.AnecdotalRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list flagged records: %w", err)
	}
	return records, nil
}

// ListByStudents returns all records for the given set of students, newest
// first. Used for class-level aggregation.
func (r *RecordRepository) ListByStudents(ctx context.Context, studentIDs []string) ([]models.AnecdotalRecord, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM anecdotal_records WHERE student_id = ANY($1) ORDER BY created_at DESC, id DESC`, recordColumns)
	var records []models.AnecdotalRecord
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list records by students: %w", err)
	}
	return records, nil
}

// GetByIDs returns the records matching the given identifiers.
func (r *RecordRepository) GetByIDs(ctx context.Context, ids []string) ([]models.AnecdotalRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM anecdotal_records WHERE id = ANY($1) ORDER BY created_at DESC, id DESC`, recordColumns)
	var records []models.AnecdotalRecord
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get records by ids: %w", err)
	}
	return records, nil
}

// GetByID returns a single record.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.AnecdotalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM anecdotal_records WHERE id = $1 LIMIT 1`, recordColumns)
	var record models.AnecdotalRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &record, nil
}

// Create inserts a new observation record.
func (r *RecordRepository) Create(ctx context.Context, record *models.AnecdotalRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO anecdotal_records (id, student_id, author_id, note, value_tag, assessment_type, is_flagged_for_report, file_url, created_at, updated_at)
VALUES (:id, :student_id, :author_id, :note, :value_tag, :assessment_type, :is_flagged_for_report, :file_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// CreateBatch inserts one record per student ID inside a single transaction.
// Every row shares one timestamp captured before the loop, so the batch sorts
// as a unit in recency-ordered views. Either all rows land or none do.
func (r *RecordRepository) CreateBatch(ctx context.Context, studentIDs []string, tpl models.RecordTemplate) ([]models.AnecdotalRecord, error) {
	if len(studentIDs) == 0 {
		return nil, fmt.Errorf("create batch: no student ids")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO anecdotal_records (id, student_id, author_id, note, value_tag, assessment_type, is_flagged_for_report, file_url, created_at, updated_at)
VALUES (:id, :student_id, :author_id, :note, :value_tag, :assessment_type, :is_flagged_for_report, :file_url, :created_at, :updated_at)`

	records := make([]models.AnecdotalRecord, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		record := models.AnecdotalRecord{
			ID:                 uuid.NewString(),
			StudentID:          studentID,
			AuthorID:           tpl.AuthorID,
			Note:               tpl.Note,
			ValueTag:           tpl.ValueTag,
			AssessmentType:     tpl.AssessmentType,
			IsFlaggedForReport: tpl.IsFlaggedForReport,
			FileURL:            tpl.FileURL,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
			return nil, fmt.Errorf("insert batch record for student %s: %w", studentID, err)
		}
		records = append(records, record)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch tx: %w", err)
	}
	return records, nil
}

// Update modifies the mutable fields of an existing record.
func (r *RecordRepository) Update(ctx context.Context, record *models.AnecdotalRecord) error {
	record.UpdatedAt = time.Now().UTC()
	query := `UPDATE anecdotal_records SET note = :note, value_tag = :value_tag, assessment_type = :assessment_type, is_flagged_for_report = :is_flagged_for_report, file_url = :file_url, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// SetFlag toggles the report-inclusion flag on a record.
func (r *RecordRepository) SetFlag(ctx context.Context, id string, flagged bool) error {
	const query = `UPDATE anecdotal_records SET is_flagged_for_report = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, flagged, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set record flag: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an observation record.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM anecdotal_records WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

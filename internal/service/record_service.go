package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-journey-api/internal/dto"
	"github.com/noah-isme/learning-journey-api/internal/models"
	appErrors "github.com/noah-isme/learning-journey-api/pkg/errors"
)

type recordRepository interface {
	List(ctx context.Context, filter models.RecordFilter) ([]models.AnecdotalRecord, int, error)
	ListFlaggedByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error)
	GetByID(ctx context.Context, id string) (*models.AnecdotalRecord, error)
	Create(ctx context.Context, record *models.AnecdotalRecord) error
	CreateBatch(ctx context.Context, studentIDs []string, tpl models.RecordTemplate) ([]models.AnecdotalRecord, error)
	Update(ctx context.Context, record *models.AnecdotalRecord) error
	SetFlag(ctx context.Context, id string, flagged bool) error
	Delete(ctx context.Context, id string) error
}

type recordStudentChecker interface {
	GetByID(ctx context.Context, id string) (*models.StudentDetail, error)
	CountExistingActive(ctx context.Context, ids []string) (int, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type insightInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID string)
}

// RecordService manages anecdotal observation records.
type RecordService struct {
	repo      recordRepository
	students  recordStudentChecker
	audit     auditRecorder
	insights  insightInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRecordService constructs a RecordService.
func NewRecordService(repo recordRepository, students recordStudentChecker, audit auditRecorder, insights insightInvalidator, validate *validator.Validate, logger *zap.Logger) *RecordService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		repo:      repo,
		students:  students,
		audit:     audit,
		insights:  insights,
		validator: validate,
		logger:    logger,
	}
}

// List returns records matching the filter. Teachers see only records they
// authored when scoped is set.
func (s *RecordService) List(ctx context.Context, filter models.RecordFilter) ([]models.AnecdotalRecord, int, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	return records, total, nil
}

// ListFlagged returns the records marked for report inclusion, newest first.
func (s *RecordService) ListFlagged(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	records, err := s.repo.ListFlaggedByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list flagged records")
	}
	return records, nil
}

// Get loads a single record.
func (s *RecordService) Get(ctx context.Context, id string) (*models.AnecdotalRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return record, nil
}

// Create validates and stores a single observation record.
func (s *RecordService) Create(ctx context.Context, req dto.CreateRecordRequest, authorID string) (*models.AnecdotalRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}
	tpl, err := s.buildTemplate(req.Note, req.ValueTag, req.AssessmentType, req.IsFlaggedForReport, req.FileURL, authorID)
	if err != nil {
		return nil, err
	}

	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}

	record := &models.AnecdotalRecord{
		StudentID:          req.StudentID,
		AuthorID:           tpl.AuthorID,
		Note:               tpl.Note,
		ValueTag:           tpl.ValueTag,
		AssessmentType:     tpl.AssessmentType,
		IsFlaggedForReport: tpl.IsFlaggedForReport,
		FileURL:            tpl.FileURL,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
	}

	s.invalidate(ctx, record.StudentID)
	s.writeAudit(ctx, authorID, models.AuditActionRecordCreate, record.ID, fmt.Sprintf(`{"studentId":%q}`, record.StudentID))
	return record, nil
}

// CreateBatch writes one identical record per student atomically. Either the
// whole batch lands or none of it does.
func (s *RecordService) CreateBatch(ctx context.Context, req dto.BatchCreateRecordRequest, authorID string) (*dto.BatchCreateRecordResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}

	studentIDs := dedupe(req.StudentIDs)
	if len(studentIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one student is required")
	}

	tpl, err := s.buildTemplate(req.Note, req.ValueTag, req.AssessmentType, req.IsFlaggedForReport, req.FileURL, authorID)
	if err != nil {
		return nil, err
	}

	count, err := s.students.CountExistingActive(ctx, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify students")
	}
	if count != len(studentIDs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "one or more students do not exist or are inactive")
	}

	records, err := s.repo.CreateBatch(ctx, studentIDs, tpl)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch records")
	}

	for _, studentID := range studentIDs {
		s.invalidate(ctx, studentID)
	}
	s.writeAudit(ctx, authorID, models.AuditActionRecordBatchCreate, "", fmt.Sprintf(`{"students":%d}`, len(studentIDs)))

	s.logger.Info("batch records created",
		zap.Int("students", len(studentIDs)),
		zap.String("value_tag", string(tpl.ValueTag)),
		zap.String("author_id", authorID),
	)
	return &dto.BatchCreateRecordResponse{Created: len(records), Records: records}, nil
}

// Update modifies the observation fields of an existing record.
func (s *RecordService) Update(ctx context.Context, id string, req dto.UpdateRecordRequest, actorID string, role models.UserRole) (*models.AnecdotalRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record payload")
	}
	tpl, err := s.buildTemplate(req.Note, req.ValueTag, req.AssessmentType, req.IsFlaggedForReport, req.FileURL, actorID)
	if err != nil {
		return nil, err
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == models.RoleTeacher && record.AuthorID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "record belongs to another author")
	}

	record.Note = tpl.Note
	record.ValueTag = tpl.ValueTag
	record.AssessmentType = tpl.AssessmentType
	record.IsFlaggedForReport = tpl.IsFlaggedForReport
	record.FileURL = tpl.FileURL

	if err := s.repo.Update(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update record")
	}
	s.invalidate(ctx, record.StudentID)
	return record, nil
}

// SetFlag toggles report inclusion for a record.
func (s *RecordService) SetFlag(ctx context.Context, id string, flagged bool, actorID string, role models.UserRole) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if role == models.RoleTeacher && record.AuthorID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "record belongs to another author")
	}
	if err := s.repo.SetFlag(ctx, id, flagged); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update record flag")
	}
	s.invalidate(ctx, record.StudentID)
	return nil
}

// Delete removes a record permanently.
func (s *RecordService) Delete(ctx context.Context, id string, actorID string, role models.UserRole) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if role == models.RoleTeacher && record.AuthorID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "record belongs to another author")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}
	s.invalidate(ctx, record.StudentID)
	s.writeAudit(ctx, actorID, models.AuditActionRecordDelete, id, "")
	return nil
}

func (s *RecordService) buildTemplate(note, valueTag, assessmentType string, flagged bool, fileURL *string, authorID string) (models.RecordTemplate, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return models.RecordTemplate{}, appErrors.Clone(appErrors.ErrValidation, "note must not be empty")
	}
	tag := models.ValueTag(valueTag)
	if !tag.IsValid() {
		return models.RecordTemplate{}, appErrors.Clone(appErrors.ErrValidation, "unknown value tag")
	}
	assessment := models.AssessmentType(strings.ToUpper(assessmentType))
	if !assessment.IsValid() {
		return models.RecordTemplate{}, appErrors.Clone(appErrors.ErrValidation, "assessment type must be FORMATIVE or SUMMATIVE")
	}
	if fileURL != nil && strings.TrimSpace(*fileURL) == "" {
		fileURL = nil
	}
	return models.RecordTemplate{
		AuthorID:           authorID,
		Note:               note,
		ValueTag:           tag,
		AssessmentType:     assessment,
		IsFlaggedForReport: flagged,
		FileURL:            fileURL,
	}, nil
}

func (s *RecordService) invalidate(ctx context.Context, studentID string) {
	if s.insights != nil {
		s.insights.InvalidateStudent(ctx, studentID)
	}
}

func (s *RecordService) writeAudit(ctx context.Context, actorID, action, resourceID, payload string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:   &actorID,
		Action:   action,
		Resource: "records",
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if payload != "" {
		log.NewValues = []byte(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

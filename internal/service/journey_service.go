package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learning-journey-api/internal/models"
	appErrors "github.com/noah-isme/learning-journey-api/pkg/errors"
	"github.com/noah-isme/learning-journey-api/pkg/generation"
)

type journeyRecordRepository interface {
	ListFlaggedByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.AnecdotalRecord, error)
}

type journeyStudentRepository interface {
	GetByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// JourneyConfig tunes delegated report generation.
type JourneyConfig struct {
	Enabled bool
	Timeout time.Duration
}

// JourneyService composes Learning Journey narratives. Composition prefers
// the delegated generation path and falls back to a local template when that
// path is unavailable; the operation itself never fails on generation errors.
type JourneyService struct {
	records   journeyRecordRepository
	students  journeyStudentRepository
	generator generation.Generator
	metrics   *MetricsService
	audit     auditRecorder
	logger    *zap.Logger
	cfg       JourneyConfig
}

// NewJourneyService constructs a JourneyService. A nil generator disables the
// delegated path entirely.
func NewJourneyService(records journeyRecordRepository, students journeyStudentRepository, generator generation.Generator, metrics *MetricsService, audit auditRecorder, logger *zap.Logger, cfg JourneyConfig) *JourneyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &JourneyService{
		records:   records,
		students:  students,
		generator: generator,
		metrics:   metrics,
		audit:     audit,
		logger:    logger,
		cfg:       cfg,
	}
}

// Compose builds a Learning Journey narrative for a student. When recordIDs
// is empty the flagged records are used; otherwise only the named records,
// which must belong to the student. The narrative is ephemeral and is not
// persisted.
func (s *JourneyService) Compose(ctx context.Context, studentID string, recordIDs []string, actorID string) (*models.Journey, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	records, err := s.resolveRecords(ctx, studentID, recordIDs)
	if err != nil {
		return nil, err
	}

	report, delegated := s.generate(ctx, student.FullName, records)
	if s.metrics != nil {
		s.metrics.RecordJourneyGeneration(delegated)
	}
	s.writeAudit(ctx, actorID, studentID, len(records), delegated)

	return &models.Journey{
		StudentID:   studentID,
		StudentName: student.FullName,
		Report:      report,
		RecordCount: len(records),
		Advisory:    !delegated,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *JourneyService) resolveRecords(ctx context.Context, studentID string, recordIDs []string) ([]models.AnecdotalRecord, error) {
	if len(recordIDs) > 0 {
		fetched, err := s.records.GetByIDs(ctx, dedupe(recordIDs))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
		}
		records := make([]models.AnecdotalRecord, 0, len(fetched))
		for _, record := range fetched {
			if record.StudentID == studentID {
				records = append(records, record)
			}
		}
		if len(records) == 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no valid records found")
		}
		return records, nil
	}

	records, err := s.records.ListFlaggedByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load flagged records")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no records flagged for report")
	}
	return records, nil
}

// generate returns the report text and whether the delegated path produced it.
func (s *JourneyService) generate(ctx context.Context, studentName string, records []models.AnecdotalRecord) (string, bool) {
	if !s.cfg.Enabled || s.generator == nil {
		return fallbackReport(studentName, len(records)), false
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	observations := make([]generation.Observation, 0, len(records))
	for _, record := range records {
		observations = append(observations, generation.Observation{
			ValueTag:       string(record.ValueTag),
			AssessmentType: string(record.AssessmentType),
			Note:           record.Note,
			RecordedAt:     record.CreatedAt,
		})
	}

	report, err := s.generator.Generate(genCtx, generation.Request{
		StudentName:  studentName,
		Observations: observations,
	})
	if err != nil {
		s.logger.Warn("delegated generation unavailable, using local template",
			zap.String("student", studentName),
			zap.Error(err),
		)
		return fallbackReport(studentName, len(records)), false
	}
	return report, true
}

func (s *JourneyService) writeAudit(ctx context.Context, actorID, studentID string, recordCount int, delegated bool) {
	if s.audit == nil {
		return
	}
	mode := "fallback"
	if delegated {
		mode = "delegated"
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionJourneyCompose,
		Resource:   "journeys",
		ResourceID: &studentID,
		NewValues:  []byte(fmt.Sprintf(`{"records":%d,"mode":%q}`, recordCount, mode)),
	}); err != nil {
		s.logger.Warn("failed to record journey audit log", zap.Error(err))
	}
}

// fallbackReport renders the offline narrative used when delegated
// generation cannot be reached.
func fallbackReport(studentName string, recordCount int) string {
	return fmt.Sprintf(`Learning Journey Report for %[1]s

Dear Parents/Guardians,

It is my pleasure to share %[1]s's Learning Journey report, which reflects their growth and development based on %[2]d classroom observations.

Throughout this period, %[1]s has demonstrated remarkable progress across multiple areas of learning. Our observations have captured meaningful moments that showcase their developing skills, character, and learning approaches.

Key Highlights:
• %[1]s has shown consistent engagement in classroom activities
• They demonstrate positive social interactions with peers and teachers
• Their problem-solving abilities continue to develop
• They show curiosity and enthusiasm for learning

Areas of Growth:
%[1]s has made notable progress in various educational values and skills. They participate actively in class discussions and show willingness to take on challenges. Their collaborative spirit is evident in group work, and they demonstrate respect for others' ideas and contributions.

Looking Forward:
We encourage continued support for %[1]s's natural curiosity and learning enthusiasm. Providing opportunities for creative expression and problem-solving at home will further enhance their development.

%[1]s is a valued member of our classroom community, and it has been wonderful to witness their growth. Thank you for your continued partnership in their educational journey.

Warm regards,
[Teacher Name]

Note: This report was generated using our offline system. For a more detailed, AI-enhanced report, please ensure the OpenAI service is properly configured.`, studentName, recordCount)
}

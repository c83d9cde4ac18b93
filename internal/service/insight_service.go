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
)

type insightRecordRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error)
	ListByStudents(ctx context.Context, studentIDs []string) ([]models.AnecdotalRecord, error)
}

type insightStudentRepository interface {
	GetByID(ctx context.Context, id string) (*models.StudentDetail, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
}

// AggregateByTag counts observations per value tag. Every known tag is seeded
// so callers always see all ten entries, zero counts included. Records with a
// tag outside the known set are skipped, not rejected.
func AggregateByTag(records []models.AnecdotalRecord) map[models.ValueTag]int {
	counts := make(map[models.ValueTag]int, len(models.KnownValueTags))
	for _, tag := range models.KnownValueTags {
		counts[tag] = 0
	}
	for _, record := range records {
		if !record.ValueTag.IsValid() {
			continue
		}
		counts[record.ValueTag]++
	}
	return counts
}

// ClassifyEvidence partitions records into note-only and file-backed counts.
// The partition is total: the two counts sum to len(records).
func ClassifyEvidence(records []models.AnecdotalRecord) models.EvidenceSummary {
	var summary models.EvidenceSummary
	for _, record := range records {
		if record.HasFileEvidence() {
			summary.FileCount++
		} else {
			summary.NoteOnlyCount++
		}
	}
	return summary
}

// InsightService computes the derived observation views rendered on student
// profiles and class dashboards.
type InsightService struct {
	records  insightRecordRepository
	students insightStudentRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewInsightService constructs an InsightService.
func NewInsightService(records insightRecordRepository, students insightStudentRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightService{
		records:  records,
		students: students,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func studentInsightsCacheKey(studentID string) string {
	return fmt.Sprintf("insights:student:%s", studentID)
}

func classInsightsCacheKey(classID string) string {
	return fmt.Sprintf("insights:class:%s", classID)
}

// StudentInsights returns tag counts, evidence classification and record
// volume for a single student.
func (s *InsightService) StudentInsights(ctx context.Context, studentID string) (*models.StudentInsights, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	var cached models.StudentInsights
	if hit, _ := s.cache.Get(ctx, studentInsightsCacheKey(studentID), &cached); hit {
		return &cached, nil
	}

	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	records, err := s.records.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records")
	}

	insights := &models.StudentInsights{
		StudentID:   studentID,
		TagCounts:   AggregateByTag(records),
		Evidence:    ClassifyEvidence(records),
		RecordCount: len(records),
	}

	if err := s.cache.Set(ctx, studentInsightsCacheKey(studentID), insights, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache student insights", zap.String("student_id", studentID), zap.Error(err))
	}
	return insights, nil
}

// ClassInsights aggregates tag counts and evidence volume across the active
// roster of a class.
func (s *InsightService) ClassInsights(ctx context.Context, classID string) (*models.ClassInsights, error) {
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class id is required")
	}

	var cached models.ClassInsights
	if hit, _ := s.cache.Get(ctx, classInsightsCacheKey(classID), &cached); hit {
		return &cached, nil
	}

	ids, err := s.activeRosterIDs(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}

	records, err := s.records.ListByStudents(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class records")
	}

	insights := &models.ClassInsights{
		ClassID:      classID,
		StudentCount: len(ids),
		TagCounts:    AggregateByTag(records),
		Evidence:     ClassifyEvidence(records),
		RecordCount:  len(records),
	}

	if err := s.cache.Set(ctx, classInsightsCacheKey(classID), insights, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache class insights", zap.String("class_id", classID), zap.Error(err))
	}
	return insights, nil
}

const rosterPageSize = 100

// activeRosterIDs pages through the class roster until every active student
// is collected.
func (s *InsightService) activeRosterIDs(ctx context.Context, classID string) ([]string, error) {
	active := true
	ids := make([]string, 0, rosterPageSize)
	for page := 1; ; page++ {
		students, total, err := s.students.List(ctx, models.StudentFilter{
			ClassID:  classID,
			Active:   &active,
			Page:     page,
			PageSize: rosterPageSize,
		})
		if err != nil {
			return nil, err
		}
		for _, student := range students {
			ids = append(ids, student.ID)
		}
		if len(students) == 0 || len(ids) >= total {
			return ids, nil
		}
	}
}

// InvalidateStudent drops cached insight entries after a record write.
func (s *InsightService) InvalidateStudent(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, studentInsightsCacheKey(studentID)); err != nil {
		s.logger.Warn("failed to invalidate student insights", zap.String("student_id", studentID), zap.Error(err))
	}
	if err := s.cache.InvalidatePattern(ctx, "insights:class:*"); err != nil {
		s.logger.Warn("failed to invalidate class insights", zap.Error(err))
	}
}

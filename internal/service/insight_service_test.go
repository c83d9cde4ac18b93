package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-journey-api/internal/models"
)

func strPtr(s string) *string { return &s }

func TestAggregateByTagSeedsAllTags(t *testing.T) {
	counts := AggregateByTag(nil)
	require.Len(t, counts, len(models.KnownValueTags))
	for _, tag := range models.KnownValueTags {
		assert.Equal(t, 0, counts[tag])
	}
}

func TestAggregateByTagCountsAndSkipsUnknown(t *testing.T) {
	records := []models.AnecdotalRecord{
		{ValueTag: models.TagCollaboration},
		{ValueTag: models.TagCollaboration},
		{ValueTag: models.TagEmpathy},
		{ValueTag: models.ValueTag("Tidiness")},
	}
	counts := AggregateByTag(records)
	assert.Equal(t, 2, counts[models.TagCollaboration])
	assert.Equal(t, 1, counts[models.TagEmpathy])
	assert.Equal(t, 0, counts[models.TagLeadership])

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 3, total, "unknown tags are skipped, not counted")
}

func TestClassifyEvidencePartitionIsTotal(t *testing.T) {
	records := []models.AnecdotalRecord{
		{Note: "note only"},
		{Note: "with file", FileURL: strPtr("https://files/photo.jpg")},
		{Note: "blank url counts as note", FileURL: strPtr("")},
	}
	summary := ClassifyEvidence(records)
	assert.Equal(t, 2, summary.NoteOnlyCount)
	assert.Equal(t, 1, summary.FileCount)
	assert.Equal(t, len(records), summary.NoteOnlyCount+summary.FileCount)
}

type insightRecordStub struct {
	byStudent map[string][]models.AnecdotalRecord
}

func (s *insightRecordStub) ListByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error) {
	return s.byStudent[studentID], nil
}

func (s *insightRecordStub) ListByStudents(ctx context.Context, ids []string) ([]models.AnecdotalRecord, error) {
	var all []models.AnecdotalRecord
	for _, id := range ids {
		all = append(all, s.byStudent[id]...)
	}
	return all, nil
}

type insightStudentStub struct {
	students map[string]*models.StudentDetail
}

func (s *insightStudentStub) GetByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (s *insightStudentStub) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var matched []models.StudentDetail
	for _, student := range s.students {
		if filter.ClassID != "" && (student.ClassID == nil || *student.ClassID != filter.ClassID) {
			continue
		}
		matched = append(matched, *student)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= total {
			return nil, total, nil
		}
		end := start + filter.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func TestInsightServiceStudentInsights(t *testing.T) {
	records := &insightRecordStub{byStudent: map[string][]models.AnecdotalRecord{
		"s1": {
			{ID: "r1", StudentID: "s1", ValueTag: models.TagCollaboration, CreatedAt: time.Now()},
			{ID: "r2", StudentID: "s1", ValueTag: models.TagPerseverance, FileURL: strPtr("https://files/clip.mp4")},
		},
	}}
	students := &insightStudentStub{students: map[string]*models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", FullName: "Ada", Active: true}},
	}}
	svc := NewInsightService(records, students, nil, 0, nil)

	insights, err := svc.StudentInsights(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, insights.RecordCount)
	assert.Equal(t, 1, insights.TagCounts[models.TagCollaboration])
	assert.Equal(t, 1, insights.Evidence.FileCount)
	assert.Equal(t, 1, insights.Evidence.NoteOnlyCount)
	assert.Len(t, insights.TagCounts, len(models.KnownValueTags))
}

func TestInsightServiceStudentInsightsUnknownStudent(t *testing.T) {
	svc := NewInsightService(
		&insightRecordStub{byStudent: map[string][]models.AnecdotalRecord{}},
		&insightStudentStub{students: map[string]*models.StudentDetail{}},
		nil, 0, nil,
	)

	_, err := svc.StudentInsights(context.Background(), "ghost")
	require.Error(t, err)
}

func TestInsightServiceClassInsights(t *testing.T) {
	classID := "c1"
	records := &insightRecordStub{byStudent: map[string][]models.AnecdotalRecord{
		"s1": {{ValueTag: models.TagCommunication}},
		"s2": {{ValueTag: models.TagCommunication}, {ValueTag: models.TagCreativity}},
	}}
	students := &insightStudentStub{students: map[string]*models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", ClassID: &classID, Active: true}},
		"s2": {Student: models.Student{ID: "s2", ClassID: &classID, Active: true}},
	}}
	svc := NewInsightService(records, students, nil, 0, nil)

	insights, err := svc.ClassInsights(context.Background(), classID)
	require.NoError(t, err)
	assert.Equal(t, 2, insights.StudentCount)
	assert.Equal(t, 3, insights.RecordCount)
	assert.Equal(t, 2, insights.TagCounts[models.TagCommunication])
}

func TestInsightServiceClassInsightsSpansRosterPages(t *testing.T) {
	classID := "c1"
	records := &insightRecordStub{byStudent: map[string][]models.AnecdotalRecord{}}
	students := &insightStudentStub{students: map[string]*models.StudentDetail{}}
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("s%03d", i)
		students.students[id] = &models.StudentDetail{
			Student: models.Student{ID: id, ClassID: &classID, Active: true},
		}
		records.byStudent[id] = []models.AnecdotalRecord{
			{StudentID: id, ValueTag: models.TagIndependence},
		}
	}
	svc := NewInsightService(records, students, nil, 0, nil)

	insights, err := svc.ClassInsights(context.Background(), classID)
	require.NoError(t, err)
	assert.Equal(t, 150, insights.StudentCount)
	assert.Equal(t, 150, insights.RecordCount)
	assert.Equal(t, 150, insights.TagCounts[models.TagIndependence])
}

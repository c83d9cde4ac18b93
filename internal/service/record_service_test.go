package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-journey-api/internal/dto"
	"github.com/noah-isme/learning-journey-api/internal/models"
)

type recordRepoStub struct {
	records     map[string]*models.AnecdotalRecord
	batchCalls  int
	lastBatch   []string
	lastTpl     models.RecordTemplate
	batchResult []models.AnecdotalRecord
}

func newRecordRepoStub() *recordRepoStub {
	return &recordRepoStub{records: map[string]*models.AnecdotalRecord{}}
}

func (r *recordRepoStub) List(ctx context.Context, filter models.RecordFilter) ([]models.AnecdotalRecord, int, error) {
	var out []models.AnecdotalRecord
	for _, record := range r.records {
		out = append(out, *record)
	}
	return out, len(out), nil
}

func (r *recordRepoStub) ListFlaggedByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error) {
	var out []models.AnecdotalRecord
	for _, record := range r.records {
		if record.StudentID == studentID && record.IsFlaggedForReport {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (r *recordRepoStub) GetByID(ctx context.Context, id string) (*models.AnecdotalRecord, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (r *recordRepoStub) Create(ctx context.Context, record *models.AnecdotalRecord) error {
	if record.ID == "" {
		record.ID = "generated"
	}
	r.records[record.ID] = record
	return nil
}

func (r *recordRepoStub) CreateBatch(ctx context.Context, studentIDs []string, tpl models.RecordTemplate) ([]models.AnecdotalRecord, error) {
	r.batchCalls++
	r.lastBatch = studentIDs
	r.lastTpl = tpl
	if r.batchResult != nil {
		return r.batchResult, nil
	}
	out := make([]models.AnecdotalRecord, 0, len(studentIDs))
	for _, id := range studentIDs {
		out = append(out, models.AnecdotalRecord{ID: "rec-" + id, StudentID: id, Note: tpl.Note, ValueTag: tpl.ValueTag})
	}
	return out, nil
}

func (r *recordRepoStub) Update(ctx context.Context, record *models.AnecdotalRecord) error {
	r.records[record.ID] = record
	return nil
}

func (r *recordRepoStub) SetFlag(ctx context.Context, id string, flagged bool) error {
	record, ok := r.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	record.IsFlaggedForReport = flagged
	return nil
}

func (r *recordRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.records, id)
	return nil
}

type studentCheckerStub struct {
	students map[string]*models.StudentDetail
	active   map[string]bool
}

func (s *studentCheckerStub) GetByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (s *studentCheckerStub) CountExistingActive(ctx context.Context, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		if s.active[id] {
			count++
		}
	}
	return count, nil
}

func newRecordService(repo *recordRepoStub, students *studentCheckerStub) *RecordService {
	return NewRecordService(repo, students, nil, nil, nil, nil)
}

func validBatchRequest() dto.BatchCreateRecordRequest {
	return dto.BatchCreateRecordRequest{
		StudentIDs:     []string{"s1", "s2"},
		Note:           "Worked through the maze puzzle together",
		ValueTag:       "Collaboration",
		AssessmentType: "FORMATIVE",
	}
}

func TestRecordServiceCreateBatch(t *testing.T) {
	repo := newRecordRepoStub()
	students := &studentCheckerStub{active: map[string]bool{"s1": true, "s2": true}}
	svc := newRecordService(repo, students)

	resp, err := svc.CreateBatch(context.Background(), validBatchRequest(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Created)
	assert.Equal(t, 1, repo.batchCalls)
	assert.Equal(t, []string{"s1", "s2"}, repo.lastBatch)
	assert.Equal(t, "t1", repo.lastTpl.AuthorID)
	assert.Equal(t, models.TagCollaboration, repo.lastTpl.ValueTag)
}

func TestRecordServiceCreateBatchDeduplicatesStudents(t *testing.T) {
	repo := newRecordRepoStub()
	students := &studentCheckerStub{active: map[string]bool{"s1": true}}
	svc := newRecordService(repo, students)

	req := validBatchRequest()
	req.StudentIDs = []string{"s1", "s1", " s1 "}
	resp, err := svc.CreateBatch(context.Background(), req, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, []string{"s1"}, repo.lastBatch)
}

func TestRecordServiceCreateBatchRejectsEmptyStudents(t *testing.T) {
	svc := newRecordService(newRecordRepoStub(), &studentCheckerStub{})

	req := validBatchRequest()
	req.StudentIDs = nil
	_, err := svc.CreateBatch(context.Background(), req, "t1")
	require.Error(t, err)

	req.StudentIDs = []string{"   ", ""}
	_, err = svc.CreateBatch(context.Background(), req, "t1")
	require.Error(t, err)
}

func TestRecordServiceCreateBatchRejectsBlankNote(t *testing.T) {
	svc := newRecordService(newRecordRepoStub(), &studentCheckerStub{active: map[string]bool{"s1": true}})

	req := validBatchRequest()
	req.Note = "   "
	_, err := svc.CreateBatch(context.Background(), req, "t1")
	require.Error(t, err)
}

func TestRecordServiceCreateBatchRejectsUnknownTag(t *testing.T) {
	svc := newRecordService(newRecordRepoStub(), &studentCheckerStub{active: map[string]bool{"s1": true, "s2": true}})

	req := validBatchRequest()
	req.ValueTag = "Tidiness"
	_, err := svc.CreateBatch(context.Background(), req, "t1")
	require.Error(t, err)
}

func TestRecordServiceCreateBatchRejectsBadAssessmentType(t *testing.T) {
	svc := newRecordService(newRecordRepoStub(), &studentCheckerStub{active: map[string]bool{"s1": true, "s2": true}})

	req := validBatchRequest()
	req.AssessmentType = "DIAGNOSTIC"
	_, err := svc.CreateBatch(context.Background(), req, "t1")
	require.Error(t, err)
}

func TestRecordServiceCreateBatchRejectsMissingStudents(t *testing.T) {
	repo := newRecordRepoStub()
	students := &studentCheckerStub{active: map[string]bool{"s1": true}}
	svc := newRecordService(repo, students)

	_, err := svc.CreateBatch(context.Background(), validBatchRequest(), "t1")
	require.Error(t, err)
	assert.Equal(t, 0, repo.batchCalls, "no rows written when any student is invalid")
}

func TestRecordServiceCreateValidatesStudent(t *testing.T) {
	repo := newRecordRepoStub()
	students := &studentCheckerStub{students: map[string]*models.StudentDetail{
		"inactive": {Student: models.Student{ID: "inactive", Active: false}},
	}}
	svc := newRecordService(repo, students)

	req := dto.CreateRecordRequest{
		StudentID:      "ghost",
		Note:           "note",
		ValueTag:       "Empathy",
		AssessmentType: "FORMATIVE",
	}
	_, err := svc.Create(context.Background(), req, "t1")
	require.Error(t, err)

	req.StudentID = "inactive"
	_, err = svc.Create(context.Background(), req, "t1")
	require.Error(t, err)
}

func TestRecordServiceCreateNormalisesAssessmentCase(t *testing.T) {
	repo := newRecordRepoStub()
	students := &studentCheckerStub{students: map[string]*models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", Active: true}},
	}}
	svc := newRecordService(repo, students)

	record, err := svc.Create(context.Background(), dto.CreateRecordRequest{
		StudentID:      "s1",
		Note:           "Asked thoughtful questions",
		ValueTag:       "Critical Thinking",
		AssessmentType: "formative",
	}, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentFormative, record.AssessmentType)
}

func TestRecordServiceSetFlagOwnership(t *testing.T) {
	repo := newRecordRepoStub()
	repo.records["r1"] = &models.AnecdotalRecord{ID: "r1", StudentID: "s1", AuthorID: "t1"}
	svc := newRecordService(repo, &studentCheckerStub{})

	err := svc.SetFlag(context.Background(), "r1", true, "t2", models.RoleTeacher)
	require.Error(t, err, "teachers cannot flag records they did not author")

	err = svc.SetFlag(context.Background(), "r1", true, "t2", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, repo.records["r1"].IsFlaggedForReport)
}

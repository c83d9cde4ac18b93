package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-journey-api/internal/models"
	"github.com/noah-isme/learning-journey-api/internal/repository"
	appErrors "github.com/noah-isme/learning-journey-api/pkg/errors"
	"github.com/noah-isme/learning-journey-api/pkg/jobs"
	"github.com/noah-isme/learning-journey-api/pkg/storage"
)

type exportJobStoreStub struct {
	jobs    map[string]*models.ExportJob
	updates []repository.UpdateExportJobParams
}

func newExportJobStoreStub() *exportJobStoreStub {
	return &exportJobStoreStub{jobs: make(map[string]*models.ExportJob)}
}

func (s *exportJobStoreStub) Create(_ context.Context, job *models.ExportJob) error {
	job.ID = uuid.NewString()
	job.CreatedAt = time.Now().UTC()
	s.jobs[job.ID] = job
	return nil
}

func (s *exportJobStoreStub) GetByID(_ context.Context, id string) (*models.ExportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *exportJobStoreStub) Update(_ context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.updates = append(s.updates, params)
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *exportJobStoreStub) ListQueued(_ context.Context, _ int) ([]models.ExportJob, error) {
	out := make([]models.ExportJob, 0)
	for _, job := range s.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *exportJobStoreStub) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.ExportJob, error) {
	return nil, nil
}

type exportStudentStub struct {
	students map[string]*models.StudentDetail
}

func (s *exportStudentStub) GetByID(_ context.Context, id string) (*models.StudentDetail, error) {
	student, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type dispatcherStub struct {
	enqueued []jobs.Job
	err      error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.enqueued = append(d.enqueued, job)
	return nil
}

type exportGenStub struct {
	result *ExportResult
	err    error
	calls  int
}

func (g *exportGenStub) Generate(_ context.Context, _ *models.ExportJob) (*ExportResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func newExportTestEnv(t *testing.T) (*exportJobStoreStub, *dispatcherStub, *ExportService, *storage.SignedURLSigner) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	exporter := NewExportService(nil, nil, store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil)
	return newExportJobStoreStub(), &dispatcherStub{}, exporter, signer
}

func TestExportJobServiceCreateJob(t *testing.T) {
	repo, queue, exporter, _ := newExportTestEnv(t)
	students := &exportStudentStub{students: map[string]*models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", FullName: "Alice", Active: true}},
	}}
	svc := NewExportJobService(repo, students, queue, exporter, nil, ExportJobConfig{})

	resp, err := svc.CreateJob(context.Background(), "s1", models.ExportFormatPDF, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)

	job := repo.jobs[resp.ID]
	require.NotNil(t, job)
	assert.Equal(t, "Alice", job.Params.StudentName)
	assert.Equal(t, "t1", job.CreatedBy)
}

func TestExportJobServiceCreateJobRejectsBadFormat(t *testing.T) {
	repo, queue, exporter, _ := newExportTestEnv(t)
	students := &exportStudentStub{students: map[string]*models.StudentDetail{}}
	svc := NewExportJobService(repo, students, queue, exporter, nil, ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), "s1", models.ExportFormat("DOCX"), "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, queue.enqueued)
}

func TestExportJobServiceCreateJobUnknownStudent(t *testing.T) {
	repo, queue, exporter, _ := newExportTestEnv(t)
	students := &exportStudentStub{students: map[string]*models.StudentDetail{}}
	svc := NewExportJobService(repo, students, queue, exporter, nil, ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), "ghost", models.ExportFormatCSV, "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	repo, queue, exporter, _ := newExportTestEnv(t)
	queue.err = errors.New("queue full")
	students := &exportStudentStub{students: map[string]*models.StudentDetail{
		"s1": {Student: models.Student{ID: "s1", FullName: "Alice", Active: true}},
	}}
	svc := NewExportJobService(repo, students, queue, exporter, nil, ExportJobConfig{})

	_, err := svc.CreateJob(context.Background(), "s1", models.ExportFormatPDF, "t1")
	require.Error(t, err)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportJobServiceGetStatusOwnership(t *testing.T) {
	repo, queue, exporter, _ := newExportTestEnv(t)
	svc := NewExportJobService(repo, &exportStudentStub{}, queue, exporter, nil, ExportJobConfig{})

	job := &models.ExportJob{Status: models.ExportStatusProcessing, CreatedBy: "t1"}
	require.NoError(t, repo.Create(context.Background(), job))

	_, err := svc.GetStatus(context.Background(), job.ID, "t2", models.RoleTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	resp, err := svc.GetStatus(context.Background(), job.ID, "t2", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusProcessing, resp.Status)
}

func TestExportJobServiceResolveDownload(t *testing.T) {
	repo, queue, exporter, signer := newExportTestEnv(t)
	svc := NewExportJobService(repo, &exportStudentStub{}, queue, exporter, nil, ExportJobConfig{})

	relPath := "journeys/alice.csv"
	_, err := exporter.storage.Save(relPath, []byte("Date,Skill\n"))
	require.NoError(t, err)

	job := &models.ExportJob{
		Params:    models.ExportJobParams{StudentID: "s1", StudentName: "Alice", Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		CreatedBy: "t1",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	token, _, err := signer.Generate(job.ID, relPath)
	require.NoError(t, err)
	url := fmt.Sprintf("/api/v1/exports/download/%s", token)
	repo.jobs[job.ID].ResultURL = &url

	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "alice.csv", download.Filename)
	assert.Equal(t, models.ExportFormatCSV, download.Format)
}

func TestExportJobServiceResolveDownloadExpiredToken(t *testing.T) {
	repo, queue, exporter, _ := newExportTestEnv(t)
	svc := NewExportJobService(repo, &exportStudentStub{}, queue, exporter, nil, ExportJobConfig{})

	shortLived := storage.NewSignedURLSigner("test-secret", time.Millisecond)
	token, _, err := shortLived.Generate("job-1", "journeys/alice.pdf")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 10)

	_, err = svc.ResolveDownload(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLinkExpired.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceResolveDownloadUnfinishedJob(t *testing.T) {
	repo, queue, exporter, signer := newExportTestEnv(t)
	svc := NewExportJobService(repo, &exportStudentStub{}, queue, exporter, nil, ExportJobConfig{})

	job := &models.ExportJob{Status: models.ExportStatusProcessing, CreatedBy: "t1"}
	require.NoError(t, repo.Create(context.Background(), job))

	token, _, err := signer.Generate(job.ID, "journeys/pending.pdf")
	require.NoError(t, err)
	url := "/api/v1/exports/download/" + token
	repo.jobs[job.ID].ResultURL = &url

	_, err = svc.ResolveDownload(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceRecoverPendingJobs(t *testing.T) {
	repo, queue, exporter, _ := newExportTestEnv(t)
	svc := NewExportJobService(repo, &exportStudentStub{}, queue, exporter, nil, ExportJobConfig{})

	queued := &models.ExportJob{
		Params: models.ExportJobParams{Format: models.ExportFormatPDF},
		Status: models.ExportStatusQueued,
	}
	finished := &models.ExportJob{Status: models.ExportStatusFinished}
	require.NoError(t, repo.Create(context.Background(), queued))
	require.NoError(t, repo.Create(context.Background(), finished))

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, queued.ID, queue.enqueued[0].ID)
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	repo := newExportJobStoreStub()
	job := &models.ExportJob{
		Params: models.ExportJobParams{StudentID: "s1", StudentName: "Alice", Format: models.ExportFormatPDF},
		Status: models.ExportStatusQueued,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	gen := &exportGenStub{result: &ExportResult{URL: "/api/v1/exports/download/tok", Format: models.ExportFormatPDF}}
	worker := NewExportWorker(repo, gen, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID})
	require.NoError(t, err)

	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/exports/download/tok", *stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)
}

func TestExportWorkerHandleRequeuesUntilRetriesExhausted(t *testing.T) {
	repo := newExportJobStoreStub()
	job := &models.ExportJob{Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	gen := &exportGenStub{err: errors.New("render failed")}
	worker := NewExportWorker(repo, gen, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 0})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, repo.jobs[job.ID].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 2})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusFailed, repo.jobs[job.ID].Status)
	require.NotNil(t, repo.jobs[job.ID].ErrorMessage)
}

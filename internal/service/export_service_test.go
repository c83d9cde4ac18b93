package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-journey-api/internal/models"
	"github.com/noah-isme/learning-journey-api/pkg/storage"
)

type exportComposerStub struct {
	journey *models.Journey
}

func (s *exportComposerStub) Compose(_ context.Context, _ string, _ []string, _ string) (*models.Journey, error) {
	return s.journey, nil
}

type exportRecordSourceStub struct {
	records []models.AnecdotalRecord
}

func (s *exportRecordSourceStub) ListFlaggedByStudent(_ context.Context, _ string) ([]models.AnecdotalRecord, error) {
	return s.records, nil
}

func newExportServiceForTest(t *testing.T, composer *exportComposerStub, records *exportRecordSourceStub) (*ExportService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(composer, records, store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil), dir
}

func TestExportServiceGenerateCSV(t *testing.T) {
	fileURL := "https://files/clip.mp4"
	records := &exportRecordSourceStub{records: []models.AnecdotalRecord{
		{
			StudentID:      "s1",
			ValueTag:       models.TagCollaboration,
			AssessmentType: models.AssessmentFormative,
			Note:           "Shared materials with a partner",
			CreatedAt:      time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			StudentID:      "s1",
			ValueTag:       models.TagPerseverance,
			AssessmentType: models.AssessmentSummative,
			Note:           "Retried the puzzle after two failures",
			FileURL:        &fileURL,
			CreatedAt:      time.Date(2026, 2, 12, 14, 0, 0, 0, time.UTC),
		},
	}}
	svc, dir := newExportServiceForTest(t, &exportComposerStub{}, records)

	job := &models.ExportJob{
		ID:        "job-1",
		Params:    models.ExportJobParams{StudentID: "s1", StudentName: "Ada", Format: models.ExportFormatCSV},
		CreatedBy: "t1",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatCSV, result.Format)
	assert.Contains(t, result.URL, "/api/v1/exports/download/")

	payload, err := os.ReadFile(filepath.Join(dir, result.RelativePath))
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Skill", "Assessment Type", "Observation", "Evidence"}, rows[0])
	assert.Equal(t, []string{"2026-02-10", "Collaboration", "FORMATIVE", "Shared materials with a partner", "note"}, rows[1])
	assert.Equal(t, []string{"2026-02-12", "Perseverance", "SUMMATIVE", "Retried the puzzle after two failures", "file"}, rows[2])
}

func TestExportServiceGeneratePDF(t *testing.T) {
	composer := &exportComposerStub{journey: &models.Journey{
		StudentID:   "s1",
		StudentName: "Ada",
		Report:      "Dear Parents,\n\nAda has grown steadily this term.",
		GeneratedAt: time.Date(2026, 2, 15, 8, 0, 0, 0, time.UTC),
	}}
	svc, dir := newExportServiceForTest(t, composer, &exportRecordSourceStub{})

	job := &models.ExportJob{
		ID:        "job-2",
		Params:    models.ExportJobParams{StudentID: "s1", StudentName: "Ada", Format: models.ExportFormatPDF},
		CreatedBy: "t1",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload, err := os.ReadFile(filepath.Join(dir, result.RelativePath))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestExportServiceGenerateRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &exportComposerStub{}, &exportRecordSourceStub{})
	job := &models.ExportJob{
		ID:     "job-3",
		Params: models.ExportJobParams{StudentID: "s1", Format: models.ExportFormat("DOCX")},
	}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
}

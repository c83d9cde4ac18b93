package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learning-journey-api/internal/models"
	"github.com/noah-isme/learning-journey-api/pkg/export"
	"github.com/noah-isme/learning-journey-api/pkg/storage"
)

type journeyComposer interface {
	Compose(ctx context.Context, studentID string, recordIDs []string, actorID string) (*models.Journey, error)
}

type exportRecordSource interface {
	ListFlaggedByStudent(ctx context.Context, studentID string) ([]models.AnecdotalRecord, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Narrative) ([]byte, error)
}

// ExportConfig tunes export rendering behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders journey exports and persists the resulting files.
// PDF exports carry the composed narrative; CSV exports carry the flagged
// observation log the narrative was built from.
type ExportService struct {
	journeys journeyComposer
	records  exportRecordSource
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(journeys journeyComposer, records exportRecordSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		journeys: journeys,
		records:  records,
		storage:  store,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate renders the export described by the job and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}

	var payload []byte
	var err error
	switch job.Params.Format {
	case models.ExportFormatPDF:
		payload, err = s.renderPDF(ctx, job)
	case models.ExportFormatCSV:
		payload, err = s.renderCSV(ctx, job)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("journey_%s_%s.%s", job.Params.StudentID, job.ID, job.Params.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) renderPDF(ctx context.Context, job *models.ExportJob) ([]byte, error) {
	journey, err := s.journeys.Compose(ctx, job.Params.StudentID, nil, job.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("compose journey: %w", err)
	}
	doc := export.Narrative{
		Title:    "Learning Journey Report",
		Subtitle: fmt.Sprintf("Student: %s", journey.StudentName),
		Date:     journey.GeneratedAt.Format("January 2, 2006"),
		Body:     journey.Report,
	}
	return s.pdf.Render(doc)
}

func (s *ExportService) renderCSV(ctx context.Context, job *models.ExportJob) ([]byte, error) {
	records, err := s.records.ListFlaggedByStudent(ctx, job.Params.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load flagged records: %w", err)
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Skill", "Assessment Type", "Observation", "Evidence"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, record := range records {
		evidence := "note"
		if record.HasFileEvidence() {
			evidence = "file"
		}
		dataset.Rows = append(dataset.Rows, []string{
			record.CreatedAt.Format("2006-01-02"),
			string(record.ValueTag),
			string(record.AssessmentType),
			record.Note,
			evidence,
		})
	}
	return s.csv.Render(dataset)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than the TTL from local storage.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

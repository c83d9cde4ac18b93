package dto

import "github.com/noah-isme/learning-journey-api/internal/models"

// CreateRecordRequest captures POST /records payload.
type CreateRecordRequest struct {
	StudentID          string  `json:"studentId" validate:"required"`
	Note               string  `json:"note" validate:"required"`
	ValueTag           string  `json:"valueTag" validate:"required"`
	AssessmentType     string  `json:"assessmentType" validate:"required"`
	IsFlaggedForReport bool    `json:"isFlaggedForReport"`
	FileURL            *string `json:"fileUrl,omitempty"`
}

// BatchCreateRecordRequest captures POST /records/batch payload. One record
// is written per student ID, all sharing the same observation fields.
type BatchCreateRecordRequest struct {
	StudentIDs         []string `json:"studentIds" validate:"required,min=1"`
	Note               string   `json:"note" validate:"required"`
	ValueTag           string   `json:"valueTag" validate:"required"`
	AssessmentType     string   `json:"assessmentType" validate:"required"`
	IsFlaggedForReport bool     `json:"isFlaggedForReport"`
	FileURL            *string  `json:"fileUrl,omitempty"`
}

// BatchCreateRecordResponse summarises an atomic batch write.
type BatchCreateRecordResponse struct {
	Created int                      `json:"created"`
	Records []models.AnecdotalRecord `json:"records"`
}

// UpdateRecordRequest captures PUT /records/:id payload.
type UpdateRecordRequest struct {
	Note               string  `json:"note" validate:"required"`
	ValueTag           string  `json:"valueTag" validate:"required"`
	AssessmentType     string  `json:"assessmentType" validate:"required"`
	IsFlaggedForReport bool    `json:"isFlaggedForReport"`
	FileURL            *string `json:"fileUrl,omitempty"`
}

// FlagRecordRequest toggles report inclusion on a record.
type FlagRecordRequest struct {
	Flagged bool `json:"flagged"`
}

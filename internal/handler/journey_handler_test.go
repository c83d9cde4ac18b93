package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-journey-api/internal/dto"
	"github.com/noah-isme/learning-journey-api/internal/middleware"
	"github.com/noah-isme/learning-journey-api/internal/models"
	appErrors "github.com/noah-isme/learning-journey-api/pkg/errors"
)

type journeyComposerMock struct {
	journey *models.Journey
	err     error
	lastIDs []string
}

func (m *journeyComposerMock) Compose(ctx context.Context, studentID string, recordIDs []string, actorID string) (*models.Journey, error) {
	m.lastIDs = recordIDs
	return m.journey, m.err
}

func TestJourneyHandlerCompose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &journeyComposerMock{
		journey: &models.Journey{
			StudentID:   "stu-1",
			StudentName: "Maya",
			Report:      "Maya has shown remarkable growth.",
			RecordCount: 3,
			GeneratedAt: time.Now(),
		},
	}
	handler := NewJourneyHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/students/stu-1/journey", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Compose(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.JourneyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "stu-1", envelope.Data.StudentID)
	require.False(t, envelope.Data.Advisory)
	require.Empty(t, envelope.Data.AdvisoryMsg)
}

func TestJourneyHandlerComposeAdvisory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &journeyComposerMock{
		journey: &models.Journey{
			StudentID:   "stu-1",
			StudentName: "Maya",
			Report:      "Dear Parents/Guardians,",
			RecordCount: 2,
			Advisory:    true,
			GeneratedAt: time.Now(),
		},
	}
	handler := NewJourneyHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/students/stu-1/journey", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Compose(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.JourneyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.Advisory)
	require.NotEmpty(t, envelope.Data.AdvisoryMsg)
}

func TestJourneyHandlerComposeNoRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &journeyComposerMock{
		err: appErrors.Clone(appErrors.ErrValidation, "no records flagged for report"),
	}
	handler := NewJourneyHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/students/stu-1/journey", nil)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Compose(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJourneyHandlerComposeExplicitRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &journeyComposerMock{
		journey: &models.Journey{StudentID: "stu-1", StudentName: "Maya", Report: "r", RecordCount: 1, GeneratedAt: time.Now()},
	}
	handler := NewJourneyHandler(mockSvc)

	payload, _ := json.Marshal(dto.ComposeJourneyRequest{RecordIDs: []string{"rec-1", "rec-2"}})
	c, w := newGinContext(http.MethodPost, "/students/stu-1/journey", payload)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Compose(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"rec-1", "rec-2"}, mockSvc.lastIDs)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-journey-api/internal/dto"
	"github.com/noah-isme/learning-journey-api/internal/models"
	appErrors "github.com/noah-isme/learning-journey-api/pkg/errors"
	"github.com/noah-isme/learning-journey-api/pkg/response"
)

const advisoryMessage = "AI generation was unavailable; this report was produced by the offline template and should be reviewed before sharing."

type journeyComposer interface {
	Compose(ctx context.Context, studentID string, recordIDs []string, actorID string) (*models.Journey, error)
}

// JourneyHandler exposes Learning Journey composition endpoints.
type JourneyHandler struct {
	journeys journeyComposer
}

// NewJourneyHandler constructs JourneyHandler.
func NewJourneyHandler(journeys journeyComposer) *JourneyHandler {
	return &JourneyHandler{journeys: journeys}
}

// Compose godoc
// @Summary Compose a Learning Journey report
// @Description Builds a narrative report from the student's flagged records, or from an explicit record list when provided. The report is not persisted.
// @Tags Journeys
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.ComposeJourneyRequest false "Composition options"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/journey [post]
func (h *JourneyHandler) Compose(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ComposeJourneyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	journey, err := h.journeys.Compose(c.Request.Context(), c.Param("id"), req.RecordIDs, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.JourneyResponse{
		StudentID:   journey.StudentID,
		StudentName: journey.StudentName,
		Report:      journey.Report,
		RecordCount: journey.RecordCount,
		Advisory:    journey.Advisory,
		GeneratedAt: journey.GeneratedAt.Format(time.RFC3339),
	}
	if journey.Advisory {
		res.AdvisoryMsg = advisoryMessage
	}
	response.JSON(c, http.StatusOK, res, nil)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-journey-api/internal/service"
	"github.com/noah-isme/learning-journey-api/pkg/response"
)

// InsightHandler exposes tag and evidence aggregation endpoints.
type InsightHandler struct {
	insights *service.InsightService
}

// NewInsightHandler constructs InsightHandler.
func NewInsightHandler(insights *service.InsightService) *InsightHandler {
	return &InsightHandler{insights: insights}
}

// StudentInsights godoc
// @Summary Per-student tag counts and evidence summary
// @Tags Insights
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/insights [get]
func (h *InsightHandler) StudentInsights(c *gin.Context) {
	insights, err := h.insights.StudentInsights(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insights, nil)
}

// ClassInsights godoc
// @Summary Class-wide tag counts and evidence summary
// @Tags Insights
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/insights [get]
func (h *InsightHandler) ClassInsights(c *gin.Context) {
	insights, err := h.insights.ClassInsights(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insights, nil)
}

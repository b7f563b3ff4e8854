package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/response"
)

type participantReader interface {
	List(ctx context.Context, filter models.ParticipantFilter) ([]models.Participant, *models.Pagination, error)
	Get(ctx context.Context, participantID int) (*models.ParticipantStats, error)
}

type leadReader interface {
	Leads(ctx context.Context, participantID int) ([]models.Lead, error)
}

// ParticipantHandler exposes read-only participant endpoints.
type ParticipantHandler struct {
	participants participantReader
	leads        leadReader
}

// NewParticipantHandler constructs a ParticipantHandler.
func NewParticipantHandler(participants participantReader, leads leadReader) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, leads: leads}
}

// List godoc
// @Summary List participants
// @Tags Participants
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /participants [get]
func (h *ParticipantHandler) List(c *gin.Context) {
	var filter models.ParticipantFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	participants, pagination, err := h.participants.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participants, pagination)
}

// Get godoc
// @Summary Get participant
// @Description Participant row with points and every referred lead
// @Tags Participants
// @Produce json
// @Security BearerAuth
// @Param id path int true "Participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /participants/{id} [get]
func (h *ParticipantHandler) Get(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	stats, err := h.participants.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Leads godoc
// @Summary List a participant's leads
// @Tags Participants
// @Produce json
// @Security BearerAuth
// @Param id path int true "Participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /participants/{id}/leads [get]
func (h *ParticipantHandler) Leads(c *gin.Context) {
	id, ok := participantID(c)
	if !ok {
		return
	}
	leads, err := h.leads.Leads(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, leads, nil, map[string]interface{}{"count": len(leads)})
}

func participantID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "participant id must be a positive integer"))
		return 0, false
	}
	return id, true
}

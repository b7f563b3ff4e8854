package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/referral-bot/internal/models"
	appErrors "github.com/noah-isme/referral-bot/pkg/errors"
	"github.com/noah-isme/referral-bot/pkg/response"
)

type tokenIssuer interface {
	IssueToken(ctx context.Context, req models.TokenRequest) (*models.TokenResponse, error)
}

// AuthHandler issues access tokens for the ops API.
type AuthHandler struct {
	service tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc tokenIssuer) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Token godoc
// @Summary Issue an access token
// @Description Exchange the operator username and password for a bearer token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.TokenRequest true "Operator credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid token payload"))
		return
	}

	res, err := h.service.IssueToken(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

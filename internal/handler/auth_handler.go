package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "ouralink/internal/errors"
	"ouralink/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

type tokenRequest struct {
	APIKey string `json:"api_key"`
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
		return
	}
	if req.APIKey == "" {
		writeError(c, apperrors.BadRequest("invalid_api_key", "api_key is required"))
		return
	}

	result, apiErr := h.authService.Exchange(req.APIKey)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

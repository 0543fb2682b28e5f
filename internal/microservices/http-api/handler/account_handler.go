package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"accounthub/internal/microservices/http-api/dto"
	"accounthub/internal/microservices/http-api/middleware"
	"accounthub/internal/microservices/http-api/repository"
	"accounthub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the authenticated user's own account.
// Routes must sit behind middleware.AuthMiddleware.
type AccountHandler struct {
	accounts service.AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts service.AccountService, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{accounts: accounts, logger: logger}
}

func (h *AccountHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "missing user in context"})
		return
	}

	view, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// token outlived the account
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid token"})
			return
		}
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(*view))
}

func (h *AccountHandler) Update(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "missing user in context"})
		return
	}

	var req dto.UpdateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	current, err := h.accounts.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid token"})
			return
		}
		writeServiceError(c, h.logger, err)
		return
	}

	updated, err := h.accounts.UpdateProfile(c.Request.Context(), current, service.UpdateInput{
		OldPassword:     req.OldPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		Username:        req.Username,
		Email:           req.Email,
	})
	if err != nil {
		writeServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(updated.View()))
}

package api

import (
	"errors"
	"net/http"

	"api_pos/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type authHandler struct {
	authService *auth.Service
	logger      *zap.Logger
}

func newAuthHandler(authService *auth.Service, logger *zap.Logger) *authHandler {
	return &authHandler{authService: authService, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// register handles POST /api/auth/register. New accounts are cashiers.
func (h *authHandler) register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid register payload", zap.Error(err))
		writeBindError(ctx, err)
		return
	}

	session, err := h.authService.Register(ctx.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, session)
}

func (h *authHandler) login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeBindError(ctx, err)
		return
	}

	session, err := h.authService.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login rejected", zap.String("email", req.Email), zap.Error(err))
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// verify reports the account behind a still valid token. Tokens of deleted
// accounts are rejected.
func (h *authHandler) verify(ctx *gin.Context) {
	principal, _ := principalFrom(ctx)
	user, err := h.authService.User(ctx.Request.Context(), principal.UserID)
	if errors.Is(err, auth.ErrUserNotFound) {
		err = auth.ErrInvalidToken
	}
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"valid": true, "user": user})
}

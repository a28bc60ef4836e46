package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwell/blog/middleware"
	"github.com/inkwell/blog/models"
	"github.com/inkwell/blog/services"
	"github.com/inkwell/blog/session"
	"github.com/inkwell/blog/utils"
)

// SessionManager starts and ends login sessions.
type SessionManager interface {
	Create(ctx *gin.Context, data session.Data) error
	Destroy(ctx *gin.Context) error
}

// AuthController handles registration, login and logout with local accounts.
type AuthController struct {
	auth     services.AuthService
	sessions SessionManager
}

// NewAuthController creates an AuthController.
func NewAuthController(auth services.AuthService, sessions SessionManager) *AuthController {
	return &AuthController{auth: auth, sessions: sessions}
}

// Register creates an account with role "user". It does not log the user in.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username" binding:"required"`
		Email    string `json:"email" form:"email" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	user, err := a.auth.Register(ctx.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(ctx, "register", err)
		return
	}
	utils.Created(ctx, gin.H{"user": userResponse(*user)})
}

// Login verifies credentials and starts a session carrying the user id and role.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.auth.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, "login", err)
		return
	}

	if err := a.sessions.Create(ctx, session.Data{UserID: user.ID, Role: user.Role}); err != nil {
		utils.Logger.Error("create session failed", zap.Error(err), zap.Uint("user_id", user.ID))
		utils.Error(ctx, http.StatusInternalServerError, 50004, "internal server error")
		return
	}
	utils.Success(ctx, gin.H{"user": userResponse(*user)})
}

// Logout destroys the current session, if any.
func (a *AuthController) Logout(ctx *gin.Context) {
	if err := a.sessions.Destroy(ctx); err != nil {
		utils.Logger.Error("destroy session failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50005, "internal server error")
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authorized user with its current role.
func (a *AuthController) Me(ctx *gin.Context) {
	userID := ctx.GetUint(middleware.ContextUserIDKey)
	if userID == 0 {
		utils.Error(ctx, http.StatusForbidden, 40301, "forbidden")
		return
	}
	user, err := a.auth.GetUserByID(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, "load current user", err)
		return
	}
	utils.Success(ctx, userResponse(*user))
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	}
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwell/blog/services"
	"github.com/inkwell/blog/store"
	"github.com/inkwell/blog/utils"
)

// respondError translates service and store errors into the JSON envelope.
// Internal errors are logged in full and reported without detail.
func respondError(ctx *gin.Context, op string, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40020, ve.Error(), gin.H{"field": ve.Field})
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, store.ErrConflict):
		field, _ := store.ConflictField(err)
		utils.ErrorWithData(ctx, http.StatusConflict, 40901, field+" already exists", gin.H{"field": field})
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.Error(ctx, http.StatusUnauthorized, 40106, services.ErrInvalidCredentials.Error())
	default:
		utils.Logger.Error(op+" failed",
			zap.Error(err),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
		)
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
	}
}

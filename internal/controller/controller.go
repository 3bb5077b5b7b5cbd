package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/middleware"
	"github.com/lshigami/examdesk/internal/service"
	"github.com/rs/zerolog/log"
)

// StatusFor maps a service error kind onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// RespondError writes err as a dto.ErrorResponse. Known error kinds carry their own message;
// anything else is reported as fallback with the cause in Details.
func RespondError(ctx *gin.Context, err error, fallback string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg(fallback)
		ctx.JSON(status, dto.ErrorResponse{Message: fallback, Details: []string{err.Error()}})
		return
	}
	ctx.JSON(status, dto.ErrorResponse{Message: err.Error()})
}

// BindError reports a request body or query that failed binding.
func BindError(ctx *gin.Context, err error) {
	log.Warn().Err(err).Str("path", ctx.FullPath()).Msg("Failed to bind request")
	ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
}

// ParseID reads a positive numeric path parameter and writes a 400 when it is malformed.
func ParseID(ctx *gin.Context, param, label string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(param), 10, 32)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + label + " ID format"})
		return 0, false
	}
	return uint(id), true
}

// Actor returns the authenticated caller, writing a 401 when there is none.
func Actor(ctx *gin.Context) (service.Actor, bool) {
	actor, ok := middleware.CurrentActor(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Authorization token required"})
	}
	return actor, ok
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/repository"
	"github.com/arklim/social-platform-lockout/internal/usecase"
)

// respondCommandError translates command and query failures into the HTTP
// vocabulary of the lockout API. Structurally invalid input (malformed session
// identifiers, unparsable addresses, bad command shapes) is a client error;
// write conflicts are retryable; everything else falls back to the supplied
// message so internals never leak into responses.
func respondCommandError(c *gin.Context, err error, fallback string) {
	switch {
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
	case errors.Is(err, domain.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed identifier or address"))
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "session not found"))
	case errors.Is(err, usecase.ErrUnlockNotAllowed):
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "unlock not allowed"))
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, NewErrorResponse(c, "write conflict, retry the request"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, fallback))
	}
}

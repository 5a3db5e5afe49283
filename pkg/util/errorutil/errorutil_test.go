package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainErrorMapsKnownErrors(t *testing.T) {
	notFound := ToDomainError(fmt.Errorf("load issue: %w", pgx.ErrNoRows))
	assert.Equal(t, "NOT_FOUND", notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	fe := ToDomainError(fiber.NewError(http.StatusMethodNotAllowed, "nope"))
	assert.Equal(t, "METHOD_NOT_ALLOWED", fe.Code)
	assert.Equal(t, "nope", fe.Message)

	internal := ToDomainError(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.Equal(t, "internal server error", internal.Message)
}

func TestToDomainErrorKeepsWrappedDomainError(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", NewForbidden("not yours"))
	de := ToDomainError(wrapped)
	assert.Equal(t, "FORBIDDEN", de.Code)
	assert.True(t, IsCode(wrapped, "FORBIDDEN"))
	assert.False(t, IsCode(wrapped, "NOT_FOUND"))
}

func TestFieldErrorDetails(t *testing.T) {
	de := ToDomainError(NewFieldError("status", "invalid choice"))
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Equal(t, []string{"invalid choice"}, de.Details["status"])
}

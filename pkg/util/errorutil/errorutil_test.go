package errorutil_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/pkg/util/errorutil"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "domain error passes through", err: errorutil.NewForbidden("nope"), wantCode: "FORBIDDEN", wantStatus: http.StatusForbidden},
		{name: "wrapped not found", err: fmt.Errorf("get event: %w", domain.ErrNotFound), wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "duplicate email", err: domain.ErrDuplicateEmail, wantCode: "CONFLICT", wantStatus: http.StatusConflict},
		{name: "version conflict", err: domain.ErrVersionConflict, wantCode: "CONFLICT", wantStatus: http.StatusConflict},
		{name: "fiber error", err: fiber.NewError(http.StatusTooManyRequests, "slow down"), wantCode: "RATE_LIMITED", wantStatus: http.StatusTooManyRequests},
		{name: "unknown", err: errors.New("boom"), wantCode: "INTERNAL_ERROR", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorutil.ToDomainError(tt.err)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
		})
	}
}

func TestToDomainError_Nil(t *testing.T) {
	assert.Nil(t, errorutil.ToDomainError(nil))
	assert.NoError(t, errorutil.MapError(nil))
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := errorutil.NewInternalError(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errorutil.IsCode(err, "INTERNAL_ERROR"))
}

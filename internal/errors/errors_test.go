package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Owner not found")
		assert.Equal(t, "NOT_FOUND: Owner not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("write failed")
		err := Wrap(ErrCodeStore, "Store error", cause)
		assert.Contains(t, err.Error(), "STORE_ERROR")
		assert.Contains(t, err.Error(), "Store error")
		assert.Contains(t, err.Error(), "write failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "HOMESERVER_URL", "reason": "invalid format"}
		err := New(ErrCodeConfig, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"Config", func() *AppError { return Config("test") }, ErrCodeConfig},
		{"MissingRequired", func() *AppError { return MissingRequired("ACCESS_TOKEN") }, ErrCodeMissingRequired},
		{"InvalidPairingCode", func() *AppError { return InvalidPairingCode() }, ErrCodeInvalidPairingCode},
		{"PairingExpired", func() *AppError { return PairingExpired() }, ErrCodePairingExpired},
		{"AlreadyPaired", func() *AppError { return AlreadyPaired() }, ErrCodeAlreadyPaired},
		{"NotPaired", func() *AppError { return NotPaired() }, ErrCodeNotPaired},
		{"NotFound", func() *AppError { return NotFound("Owner") }, ErrCodeNotFound},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
		{"Store", func() *AppError { return Store(errors.New("io")) }, ErrCodeStore},
		{"External", func() *AppError { return External("homeserver", errors.New("timeout")) }, ErrCodeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor()
			assert.Equal(t, tt.expectedCode, err.Code)
		})
	}
}

func TestErrorInspection(t *testing.T) {
	t.Run("IsAppError detects AppError", func(t *testing.T) {
		assert.True(t, IsAppError(AlreadyPaired()))
		assert.False(t, IsAppError(errors.New("plain")))
	})

	t.Run("AsAppError unwraps nested AppError", func(t *testing.T) {
		inner := InvalidPairingCode()
		wrapped := errors.Join(errors.New("outer"), inner)
		appErr, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeInvalidPairingCode, appErr.Code)
	})

	t.Run("GetCode falls back to internal", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
		assert.Equal(t, ErrCodeNotPaired, GetCode(NotPaired()))
	})
}

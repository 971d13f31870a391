package escrow_test

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-escrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelTaxonomy(t *testing.T) {
	cases := []struct {
		err      *goerrors.Error
		category goerrors.Category
		code     int
		text     string
	}{
		{escrow.ErrIllegalTransition, goerrors.CategoryValidation, http.StatusBadRequest, escrow.TextCodeIllegalTransition},
		{escrow.ErrEscrowNotFound, goerrors.CategoryNotFound, http.StatusNotFound, escrow.TextCodeEscrowNotFound},
		{escrow.ErrUnauthorized, goerrors.CategoryAuth, http.StatusUnauthorized, escrow.TextCodeUnauthorized},
		{escrow.ErrForbidden, goerrors.CategoryAuthz, http.StatusForbidden, escrow.TextCodeForbidden},
		{escrow.ErrConcurrentModification, goerrors.CategoryConflict, http.StatusConflict, escrow.TextCodeConcurrentModification},
		{escrow.ErrInvalidStatus, goerrors.CategoryBadInput, http.StatusBadRequest, escrow.TextCodeInvalidStatus},
		{escrow.ErrInvalidAction, goerrors.CategoryBadInput, http.StatusBadRequest, escrow.TextCodeInvalidAction},
		{escrow.ErrInvalidJoinCode, goerrors.CategoryBadInput, http.StatusBadRequest, escrow.TextCodeInvalidJoinCode},
		{escrow.ErrJoinRateLimited, goerrors.CategoryRateLimit, http.StatusTooManyRequests, escrow.TextCodeJoinRateLimited},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.category, tc.err.Category)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.text, tc.err.TextCode)
			assert.Equal(t, tc.code, escrow.ErrorStatus(tc.err))
		})
	}

	assert.Equal(t, "cannot transition in current status", escrow.ErrIllegalTransition.Message)
}

func TestMetadataDoesNotLeakIntoSentinels(t *testing.T) {
	_, err := escrow.ParseStatus("archived")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "archived", richErr.Metadata["status"])
	assert.NotSame(t, escrow.ErrInvalidStatus, richErr)
	assert.Empty(t, escrow.ErrInvalidStatus.Metadata)
}

func TestIsError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", escrow.ErrForbidden.Clone())

	assert.True(t, escrow.IsError(wrapped, escrow.ErrForbidden))
	assert.False(t, escrow.IsError(wrapped, escrow.ErrUnauthorized))
	assert.False(t, escrow.IsError(nil, escrow.ErrForbidden))
	assert.False(t, escrow.IsError(fmt.Errorf("plain"), escrow.ErrForbidden))

	assert.True(t, escrow.IsRetryable(escrow.ErrConcurrentModification.Clone()))
	assert.False(t, escrow.IsRetryable(escrow.ErrIllegalTransition))
}

func TestErrorStatusFallbacks(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, escrow.ErrorStatus(nil))
	assert.Equal(t, http.StatusNotFound, escrow.ErrorStatus(goerrors.New("gone", goerrors.CategoryNotFound)))
	assert.Equal(t, http.StatusInternalServerError, escrow.ErrorStatus(goerrors.New("boom", goerrors.CategoryExternal)))
}

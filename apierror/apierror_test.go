package apierror

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		kind   Kind
		status int
	}{
		{"validation", Validation("bad"), KindValidation, http.StatusBadRequest},
		{"not found", NotFound("missing"), KindNotFound, http.StatusBadRequest},
		{"expired", Expired("late"), KindExpired, http.StatusBadRequest},
		{"invalid token", InvalidToken("nope"), KindInvalidToken, http.StatusBadRequest},
		{"forbidden", Forbidden("no"), KindForbidden, http.StatusForbidden},
		{"unauthorized", Unauthorized("who"), KindUnauthorized, http.StatusUnauthorized},
		{"unsupported media type", UnsupportedMediaType(), KindUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{"rate limited", RateLimited(), KindRateLimited, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.NotEmpty(t, tt.err.Messages)
		})
	}
}

func TestError_WithStatus(t *testing.T) {
	original := InvalidToken("Token is blacklisted")
	changed := original.WithStatus(http.StatusUnauthorized)

	assert.Equal(t, http.StatusBadRequest, original.Status)
	assert.Equal(t, http.StatusUnauthorized, changed.Status)
	assert.Equal(t, original.Messages, changed.Messages)
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", NotFound("The information provided is incorrect"))

	apiErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, apiErr.Kind)
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindExpired))

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestFieldErrors(t *testing.T) {
	t.Run("empty collects nothing", func(t *testing.T) {
		fields := FieldErrors{}
		assert.NoError(t, fields.Err())
	})

	t.Run("collects every field", func(t *testing.T) {
		fields := FieldErrors{}
		fields.Add("email", "Enter a valid email address.")
		fields.Add("password", "Passwords must match.")
		fields.Add("password", "Password is too short.")

		err := fields.Err()
		require.Error(t, err)

		apiErr, ok := As(err)
		require.True(t, ok)
		assert.Equal(t, KindValidation, apiErr.Kind)
		assert.Len(t, apiErr.Fields["password"], 2)
		assert.Equal(t, apiErr.Fields, apiErr.Detail())
		assert.Contains(t, apiErr.Error(), "email: Enter a valid email address.")
	})

	t.Run("merge", func(t *testing.T) {
		fields := FieldErrors{"email": {"taken"}}
		fields.Merge(FieldErrors{"email": {"invalid"}, "gender": {"bad"}})

		assert.Equal(t, []string{"taken", "invalid"}, fields["email"])
		assert.True(t, fields.Has("gender"))
	})
}

func TestError_DetailMessages(t *testing.T) {
	err := NotFound("User not Exist")
	assert.Equal(t, []string{"User not Exist"}, err.Detail())
	assert.Equal(t, "not_found: User not Exist", err.Error())
}

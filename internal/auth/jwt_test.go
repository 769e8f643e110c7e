package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT(t *testing.T) {
	j := NewJWT("secret")

	token, err := j.Sign(7)
	require.NoError(t, err)

	id, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	_, err = NewJWT("other").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	j := &JWT{secret: []byte("secret"), ttl: -time.Minute}
	token, err := j.Sign(7)
	require.NoError(t, err)

	_, err = j.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, ComparePassword(hash, "correct horse"))
	assert.False(t, ComparePassword(hash, "wrong"))
}

func TestRequireAuth(t *testing.T) {
	j := NewJWT("secret")
	token, err := j.Sign(9)
	require.NoError(t, err)

	var got uint64
	h := RequireAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserIDFromContext(r.Context())
	}))

	for _, header := range []string{"Bearer " + token, token} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uint64(9), got)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"status":false,"msg":"Unauthorized"}`, rec.Body.String())
}

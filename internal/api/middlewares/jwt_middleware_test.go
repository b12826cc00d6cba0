package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func echoSubject() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, _ := SubjectFromContext(r.Context())
		_, _ = w.Write([]byte(sub))
	})
}

func TestJWT(t *testing.T) {
	h := JWT("s3cret")(echoSubject())
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + sign(t, "other", jwt.MapClaims{"sub": "ana", "exp": future}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"sub": "ana", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"exp": future}), http.StatusUnauthorized, ""},
		{"subject", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"sub": "ana", "exp": future}), http.StatusOK, "ana"},
		{"legacy user_id", "Bearer " + sign(t, "s3cret", jwt.MapClaims{"user_id": "u-1"}), http.StatusOK, "u-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestJWT_DisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	JWT("")(echoSubject()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLocalOnly(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	LocalOnly(false)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	LocalOnly(true)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

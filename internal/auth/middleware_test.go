// ABOUTME: Tests for the HTTP auth middleware
// ABOUTME: Covers bearer extraction, rejection paths, and session propagation

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_ValidToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	token, err := v.Generate("U1", "Alice", time.Hour)
	require.NoError(t, err)

	var got Session
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		require.True(t, ok)
		got = s
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Session{UserID: "U1", Name: "Alice"}, got)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without auth")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_BadToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req.Header.Set("Authorization", "Bearer junk")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package society

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aravali-saas/aravali/internal/shared"
)

type fakeSocietyRepo struct {
	societies map[int64]Society
}

func (f *fakeSocietyRepo) GetActive(ctx context.Context, id int64) (Society, error) {
	s, ok := f.societies[id]
	if !ok {
		return Society{}, ErrNotFound
	}
	return s, nil
}

func newTestMiddleware(t *testing.T, token string) Middleware {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &fakeSocietyRepo{societies: map[int64]Society{
		1: {ID: 1, Name: "Test CHS", Code: "TEST", APITokenHash: string(hash), Active: true},
	}}
	return Middleware{Repo: repo, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func requestWith(id, auth string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/billing/config", nil)
	if id != "" {
		req.Header.Set("X-Society-ID", id)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return req
}

func TestRequireResolvesSocietyContext(t *testing.T) {
	mw := newTestMiddleware(t, "secret-token")

	var resolved *shared.SocietyContext
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = shared.SocietyFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWith("1", "Bearer secret-token"))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, resolved)
	require.Equal(t, int64(1), resolved.ID)
	require.Equal(t, "Test CHS", resolved.Name)
}

func TestRequireRejectsMissingHeaders(t *testing.T) {
	mw := newTestMiddleware(t, "secret-token")
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWith("", "Bearer secret-token"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWith("1", ""))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRejectsWrongToken(t *testing.T) {
	mw := newTestMiddleware(t, "secret-token")
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWith("1", "Bearer wrong"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireRejectsUnknownSociety(t *testing.T) {
	mw := newTestMiddleware(t, "secret-token")
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWith("42", "Bearer secret-token"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

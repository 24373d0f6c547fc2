package society

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
	"github.com/aravali-saas/aravali/internal/shared"
)

// Middleware resolves the tenant for a request from the X-Society-ID header
// and a bearer token checked against the society's stored hash, then stores
// the society context for downstream handlers. Billing routes never see a
// request without a resolved society.
type Middleware struct {
	Repo   Repository
	Logger *slog.Logger
}

// Require wraps handlers with society resolution.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idHeader := r.Header.Get("X-Society-ID")
		societyID, err := strconv.ParseInt(idHeader, 10, 64)
		if err != nil || societyID <= 0 {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "X-Society-ID header required")
			return
		}

		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}

		soc, err := m.Repo.GetActive(r.Context(), societyID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown society")
				return
			}
			m.Logger.Error("load society", slog.Any("error", err), slog.Int64("society_id", societyID))
			httpx.RespondError(w, err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(soc.APITokenHash), []byte(token)); err != nil {
			m.Logger.Warn("society token rejected", slog.Int64("society_id", societyID))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrInvalidAPIToken.Error())
			return
		}

		ctx := shared.ContextWithSociety(r.Context(), &shared.SocietyContext{ID: soc.ID, Name: soc.Name})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

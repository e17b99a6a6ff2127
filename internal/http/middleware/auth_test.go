package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/runcoach/internal/auth"
)

func testRouter(tokens auth.Tokens) http.Handler {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(Bearer(tokens))
		pr.Route("/athletes/{athleteID}", func(ar chi.Router) {
			ar.Use(RequireAthlete)
			ar.Get("/data", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		})
	})
	return r
}

func TestBearerMissingToken(t *testing.T) {
	h := testRouter(auth.Tokens{Secret: []byte("s")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/athletes/abc/data", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerInvalidToken(t *testing.T) {
	h := testRouter(auth.Tokens{Secret: []byte("s")})
	req := httptest.NewRequest("GET", "/athletes/abc/data", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAthleteMatchesSubject(t *testing.T) {
	tokens := auth.Tokens{Secret: []byte("s")}
	h := testRouter(tokens)
	token := tokens.Sign("athlete-1", time.Now().Add(time.Hour))

	req := httptest.NewRequest("GET", "/athletes/athlete-1/data", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAthleteRejectsOtherAthlete(t *testing.T) {
	tokens := auth.Tokens{Secret: []byte("s")}
	h := testRouter(tokens)
	token := tokens.Sign("athlete-1", time.Now().Add(time.Hour))

	req := httptest.NewRequest("GET", "/athletes/athlete-2/data", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/briangreenhill/runcoach/internal/auth"
)

type contextKey string

const SubjectKey contextKey = "subject"

// Subject returns the authenticated athlete id from the request
// context, or "" when the request is unauthenticated.
func Subject(r *http.Request) string {
	s, _ := r.Context().Value(SubjectKey).(string)
	return s
}

// Bearer verifies the Authorization header and stores the token
// subject in the request context. Requests without a valid token get
// 401.
func Bearer(tokens auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}
			subject, err := tokens.Verify(raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAthlete ensures the token subject matches the {athleteID} URL
// parameter, so a token for one athlete cannot read another's data.
func RequireAthlete(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := Subject(r)
		if subject == "" || subject != chi.URLParam(r, "athleteID") {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

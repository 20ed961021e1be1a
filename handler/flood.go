package handler

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"portfolio-contact/internal/usecase"
)

// FloodGuard returns middleware that sheds load with a single process-wide
// token bucket. It sits in front of the per-address limit, which is still
// enforced by the store. rps <= 0 disables it.
func FloodGuard(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(errorResponse{Error: usecase.MessageRateLimited})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

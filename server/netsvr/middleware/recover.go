package middleware

import (
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// Recover 把 handler 的 panic 轉成 500。
func Recover(next http.Handler) http.Handler {
	return chimid.Recoverer(next)
}

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that allows the calculator frontend to call the
// API from its own origin. extraOrigins lets deployments add their hosted
// domain on top of local development.
func CORS(extraOrigins ...string) func(http.Handler) http.Handler {
	origins := append([]string{"http://localhost:3000"}, extraOrigins...)
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}

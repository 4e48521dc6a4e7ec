/**
 * @description
 * This file sets up the HTTP router for the gateway. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quetzalbank/banking-gateway/internal/session"
)

// GatewayRoutes creates and returns the router for the banking gateway.
func GatewayRoutes(h *GatewayHandlers, jwtSecret string, store session.Store) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret, store))

		r.Get("/dashboard", h.DashboardHandler)

		r.Get("/accounts", h.ListAccountsHandler)
		r.Get("/accounts/me", h.MyAccountHandler)
		r.Get("/accounts/sorted", h.SortedAccountsHandler)

		r.Get("/transactions", h.ListTransactionsHandler)

		r.Post("/deposits", h.CreateDepositHandler)
		r.Get("/deposits", h.ListDepositsHandler)
		r.Post("/deposits/{depositID}/reverse", h.ReverseDepositHandler)

		r.Get("/favorites", h.ListFavoritesHandler)
		r.Post("/favorites/{accountID}", h.ToggleFavoriteHandler)

		// Admin-only user management.
		r.Route("/users", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/", h.ListUsersHandler)
			r.Put("/{userID}", h.UpdateUserHandler)
			r.Delete("/{userID}", h.DeleteUserHandler)
		})
	})

	return r
}

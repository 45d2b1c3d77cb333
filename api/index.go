package handler

import (
	"fmt"
	"net/http"
	"time"

	"orghub-backend/pkg/config"
	"orghub-backend/pkg/database"
	"orghub-backend/pkg/handlers"
	customMiddleware "orghub-backend/pkg/middleware"
	"orghub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler is the single HTTP entry point. All routes live in one chi router
// so the whole API surface is visible in one place.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.GetCached()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	db, err := database.GetDatabase(database.DatabaseConfig{
		PostgresDSN: cfg.PostgresDSN,
		UseMemoryDB: cfg.UseMemoryDB,
		Debug:       cfg.Debug,
	})
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Database error: "+err.Error())
		return
	}

	NewRouter(cfg, db).ServeHTTP(w, r)
}

// NewRouter assembles middleware and routes onto a fresh chi router.
func NewRouter(cfg *config.Config, db database.DatabaseInterface) *chi.Mux {
	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)
	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))

	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	sessions := utils.NewSessionService(cfg.JWTSecret, cfg.IsProduction())

	authHandler := handlers.NewAuthHandler(cfg, db, sessions)
	orgsHandler := handlers.NewOrgsHandler(cfg, db)
	notificationsHandler := handlers.NewNotificationsHandler(cfg, db, sessions)

	router.Get("/", authHandler.HealthCheck)

	if cfg.IsDevelopment() {
		router.Get("/debug/db-pool", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, database.GetConnectionStats())
		})
		router.Get("/debug/env-check", func(w http.ResponseWriter, r *http.Request) {
			utils.WriteSuccessResponse(w, map[string]interface{}{
				"jwt_secret":             cfg.JWTSecret != "",
				"postgres_dsn":           cfg.PostgresDSN != "",
				"use_memory_db":          cfg.UseMemoryDB,
				"redirect_authenticated": cfg.RedirectAuthenticated,
			})
		})
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.ContentTypeJSON)
		r.Use(customMiddleware.MaxBodySize(1 << 20))

		// Public routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.RequireSession(sessions))
				r.Get("/me", authHandler.Me)
			})
		})

		// Everything below requires a verified session
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.RequireSession(sessions))

			r.Route("/users", func(r chi.Router) {
				r.Get("/", authHandler.ListUsers)
				r.Put("/profile", authHandler.UpdateProfile)
			})

			r.Route("/orgs", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMyOrganizations)
				r.Post("/", orgsHandler.CreateOrganization)
				r.Get("/all", orgsHandler.ListOrganizations)
				r.Get("/members", orgsHandler.ListMembers) // expects ?org_id=
				r.Post("/invite", orgsHandler.InviteMembers)
				r.Get("/{slug}", orgsHandler.GetOrganizationBySlug)
				r.Put("/{id}", orgsHandler.UpdateOrganization)
				r.Delete("/{id}", orgsHandler.DeleteOrganization)
			})

			r.Route("/memberships", func(r chi.Router) {
				r.Put("/{id}", orgsHandler.UpdateMembership)
				r.Delete("/{id}", orgsHandler.DeleteMembership)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationsHandler.ListNotifications)
				r.Post("/read-all", notificationsHandler.MarkAllRead)
				r.Post("/{id}/read", notificationsHandler.MarkRead)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Post("/accept", notificationsHandler.AcceptInvitation)
			})
		})
	})

	// Page tree: the session guard redirects instead of returning 401
	router.Group(func(r chi.Router) {
		r.Use(customMiddleware.SessionGuard(cfg, sessions))

		r.Get("/dashboard", authHandler.Dashboard)
		r.Get("/login", servePagePlaceholder("login"))
		r.Get("/sign-up", servePagePlaceholder("sign-up"))
		r.Get("/forgot-password", servePagePlaceholder("forgot-password"))
		r.Get("/reset-password", servePagePlaceholder("reset-password"))
		r.Get("/verify-email", servePagePlaceholder("verify-email"))
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}

// servePagePlaceholder stands in for the frontend pages; the real app serves
// these from its own deployment. Kept so the guard's open paths resolve when
// the API runs standalone.
func servePagePlaceholder(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccessResponse(w, map[string]interface{}{"page": page})
	}
}

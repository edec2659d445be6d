package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/services/auth"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	for _, mw := range a.middleware {
		r.Use(mw)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := a.config.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))

	editors := a.requireRole(auth.RoleTeacher, auth.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.Post("/logout", a.handleLogout)
			r.With(a.requireAuth).Get("/me", a.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/attendance", a.handleSheet)
			r.With(editors).Post("/attendance", a.handleSubmit)
			r.Get("/divisions", a.handleDivisions)
			r.Get("/history", a.handleHistory)
			r.Post("/history/export", a.handleExport)

			r.Route("/students", func(r chi.Router) {
				r.Get("/", a.handleListStudents)
				r.With(editors).Post("/", a.handleCreateStudent)
				r.Route("/{id}", func(r chi.Router) {
					r.With(editors).Put("/", a.handleUpdateStudent)
					r.With(editors).Delete("/", a.handleDeleteStudent)
					r.Get("/attendance", a.handleStudentAttendance)
				})
			})
		})
	})

	return r, nil
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.attendance.Ping(r.Context()); err != nil {
		a.log.Warn().Err(err).Msg("readiness check failed")
		respondError(w, http.StatusServiceUnavailable, errors.New("database unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

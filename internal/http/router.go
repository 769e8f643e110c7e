package http

import (
	"log/slog"
	"net/http"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/http/handler"
	mw "taskmanager/internal/http/middleware"
	"taskmanager/internal/mailer"
	"taskmanager/internal/reminder"
	"taskmanager/internal/task"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Deps struct {
	Config    config.Config
	DB        *gorm.DB
	JWT       *auth.JWT
	Tasks     *task.Service
	Reminders *reminder.Service
	Scheduler handler.Waker
	TaskStore reminder.TaskStore
	Mailer    mailer.Sender
	Logger    *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.Config.CORSAllowedOrigins, d.Config.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT}
	th := &handler.TaskHandler{Svc: d.Tasks, Logger: d.Logger}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", ah.Register)
		r.Post("/auth/login", ah.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.JWT))

			r.Get("/profile", ah.Profile)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", th.List)
				r.Post("/", th.Create)
				r.Get("/{id}", th.Get)
				r.Put("/{id}", th.Update)
				r.Delete("/{id}", th.Delete)
			})

			if d.Config.DebugRoutes {
				mountDebug(r, d)
			}
		})
	})

	return r
}

func mountDebug(r chi.Router, d Deps) {
	dh := &handler.DebugHandler{
		Reminders: d.Reminders,
		Scheduler: d.Scheduler,
		Tasks:     d.TaskStore,
		Sender:    d.Mailer,
		From:      d.Config.Mail.From,
		DefaultTo: d.Config.Mail.SMTPUser,
		Logger:    d.Logger,
	}

	r.Route("/debug", func(r chi.Router) {
		r.Get("/jobs", dh.Jobs)
		r.Get("/jobs/failed", dh.FailedJobs)
		r.Post("/jobs/reschedule", dh.Reschedule)
		r.Post("/jobs/reschedule-failed", dh.RescheduleFailed)
		r.Post("/jobs/run", dh.RunNow)
		r.Get("/tasks/{id}", dh.Task)
		r.Post("/send-test-email", dh.SendTestEmail)
	})
}

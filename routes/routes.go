package routes

import (
	"net/http"

	"github.com/Dosada05/scrimhub/handlers"
	"github.com/Dosada05/scrimhub/middleware"
	"github.com/Dosada05/scrimhub/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers собирает все HTTP-обработчики приложения.
type Handlers struct {
	Tournament  *handlers.TournamentHandler
	Participant *handlers.ParticipantHandler
	Group       *handlers.GroupHandler
	Room        *handlers.RoomHandler
	Payment     *handlers.PaymentHandler
	WebSocket   *handlers.WebSocketHandler
}

type Options struct {
	AllowedOrigins []string
	Auth           *middleware.Authenticator
	// MessageLimiter ограничивает отправку сообщений; nil отключает лимит.
	MessageLimiter *middleware.RateLimiter
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	auth := opts.Auth.Authenticate
	limit := func(next http.Handler) http.Handler { return next }
	if opts.MessageLimiter != nil {
		limit = opts.MessageLimiter.Limit
	}

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты
		r.Get("/", h.Tournament.ListHandler)
		r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/{tournamentID}/overview", h.Tournament.OverviewHandler)
		r.Get("/{tournamentID}/participants", h.Participant.ListParticipants)
		r.Get("/{tournamentID}/groups", h.Group.ListGroups)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.With(middleware.Authorize(models.RoleOrganizer, models.RoleAdmin)).Post("/", h.Tournament.CreateHandler)
			r.Patch("/{tournamentID}/status", h.Tournament.UpdateStatusHandler)

			r.Post("/{tournamentID}/participants", h.Participant.Register)
			r.Delete("/{tournamentID}/participants/{userID}", h.Participant.RemoveParticipant)

			r.Post("/{tournamentID}/groups", h.Group.CreateGroup)
			r.Post("/{tournamentID}/groups/auto", h.Group.AutoGroup)

			r.Post("/{tournamentID}/payments/order", h.Payment.CreateOrder)
		})
	})

	router.Route("/groups/{groupID}", func(r chi.Router) {
		r.Get("/", h.Group.GetGroup)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Patch("/", h.Group.RenameGroup)
			r.Delete("/", h.Group.DeleteGroup)
			r.Delete("/members/{userID}", h.Group.RemoveMember)
			r.Post("/members/move", h.Group.MoveMember)
			r.Put("/room", h.Group.EnsureRoom)
			r.Delete("/room", h.Group.DeleteRoom)
		})
	})

	router.Route("/rooms/{roomID}/messages", func(r chi.Router) {
		r.Use(auth)
		r.Get("/", h.Room.ListMessages)
		r.With(limit).Post("/", h.Room.SendMessage)
		r.Patch("/{messageID}", h.Room.EditMessage)
		r.Delete("/{messageID}", h.Room.DeleteMessage)
	})

	router.With(auth).Post("/payments/verify", h.Payment.VerifyPayment)

	router.Route("/ws", func(r chi.Router) {
		r.With(auth).Get("/rooms/{roomID}", h.WebSocket.ServeRoom)
		r.Get("/tournaments/{tournamentID}", h.WebSocket.ServeTournament)
	})
}

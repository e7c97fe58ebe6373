package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	conversationHandler "github.com/ctwww/cword/internal/handler/conversation"
	"github.com/ctwww/cword/internal/handler/events"
	personaHandler "github.com/ctwww/cword/internal/handler/persona"
	"github.com/ctwww/cword/internal/handler/stream"
	middlewarePkg "github.com/ctwww/cword/internal/middleware"
	personaModel "github.com/ctwww/cword/internal/model/persona"
	conversationService "github.com/ctwww/cword/internal/service/conversation"
	"github.com/ctwww/cword/internal/service/orchestrator"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, sessions *conversationService.Service, coordinator *orchestrator.Coordinator, feed *events.Feed) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	streamHandler := stream.New(sessions, coordinator)

	r.Route("/api", func(api chi.Router) {
		personaHandler.New(personas).RegisterRoutes(api)
		conversationHandler.New(sessions, coordinator).RegisterRoutes(api)
		feed.RegisterRoutes(api)

		// SSE 发言入口：persona 为空时自动挑选发言角色。
		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			personaName := r.URL.Query().Get("persona")
			userMessage := r.URL.Query().Get("message")

			// 响应头已随 SSE 流提交，错误只能以 error 帧送达客户端，
			// 这里仅记录日志。
			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, personaName, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}

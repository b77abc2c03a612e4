package httpsrv

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/termhub/chat-relay-service/internal/handler/ws"
)

var Module = fx.Module("http-handler",
	fx.Provide(
		NewChatHandler,
		ws.NewWSHandler,
		NewRouter,
		func(r *chi.Mux) http.Handler { return r },
	),
)

package handlers

import (
	"github.com/tech-arch1tect/backyard/server"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(func(h *Handlers, srv *server.Server) {
		h.Register(srv)
	}),
)

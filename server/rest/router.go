package rest

import (
	"github.com/go-chi/chi/v5"
	middlewares "github.com/vidfetch/vidfetch/server/middleware"
)

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := ProvideHandler(ProvideService(args))
	return Routes(h, args)
}

// Routes mounts h on a router. Split from ApplyRouter so tests can use a
// handler built outside the providers.
func Routes(h *Handler, args *ContainerArgs) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(middlewares.ApplyAuthenticationByConfig)

		r.Post("/formats", h.Formats())
		r.Post("/download", h.Download())
		r.Get("/version", h.GetVersion())
		r.Post("/update", h.Update())

		r.Route("/downloads", func(r chi.Router) {
			r.Get("/", h.Running())
			r.Get("/{id}", h.Status())
			r.Delete("/{id}", h.Cancel())
			r.Get("/{id}/ws", h.Progress())
			r.Get("/{id}/file", h.File())
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/logs", h.Logs())
			r.Post("/cleanup", h.Cleanup())
			r.Delete("/", h.DeleteSession())
		})

		if args.Archive != nil {
			r.Route("/history", args.Archive.ApplyRouter())
		}
	}
}

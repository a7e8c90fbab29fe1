package server

import (
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.endSession)
			r.Get("/history", s.getHistory)
			r.Post("/message", s.sendMessage)
		})
	})

	// Event streaming (SSE)
	r.Get("/event", s.events)

	r.Route("/mcp", func(r chi.Router) {
		r.Get("/", s.getMCPStatus)
		r.Post("/{name}", s.connectMCP)
		r.Delete("/{name}", s.disconnectMCP)
	})

	r.Get("/tools", s.listTools)
}

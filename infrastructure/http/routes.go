package http

import (
	"pickflow/frontend/admin"
	exportspage "pickflow/frontend/exports"
	"pickflow/frontend/operator"

	"github.com/go-chi/chi/v5"
)

// RegisterAdminRoutes registers the office-facing surface.
func (s *Server) RegisterAdminRoutes() {
	s.router.Route("/admin", func(r chi.Router) {
		r.Get("/", admin.DashboardPageQueryHandler(s.Store))
		r.Post("/orders", admin.CreateOrderCommandHandler(s.Store, s.Extractor))
		r.Get("/orders/{id}/qr.png", admin.OrderQRPNGHandler(s.Store))
		r.Get("/orders/{id}/ticket.pdf", admin.PickTicketPDFHandler(s.Store))
		r.Get("/exports/serials.csv", exportspage.SerialsExportCSVHandler(s.Store))
	})
}

// RegisterOperatorRoutes registers the floor-facing surface.
func (s *Server) RegisterOperatorRoutes() {
	s.router.Route("/operator", func(r chi.Router) {
		r.Get("/", operator.BrowsePageQueryHandler(s.Store))
		r.Get("/scan", operator.ScanPageQueryHandler())
		r.Post("/resolve", operator.ResolveScanCommandHandler(s.Store))
		r.Get("/orders/{id}", operator.OrderPageQueryHandler(s.Store))
		r.Post("/orders/{id}/finalize", operator.FinalizeOrderCommandHandler(s.Store))
		r.Get("/orders/{id}/items/{itemID}", operator.ItemPageQueryHandler(s.Store))
		r.Post("/orders/{id}/items/{itemID}", operator.ConfirmItemCommandHandler(s.Store))
	})
}

// RegisterAPIRoutes registers the JSON surface used by the handheld client.
func (s *Server) RegisterAPIRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/orders", s.listOrdersHandler)
		r.Post("/orders", s.createOrderHandler)
		r.Get("/orders/{id}", s.getOrderHandler)
		r.Put("/orders/{id}", s.updateOrderHandler)
		r.Put("/orders/{id}/status", s.updateOrderStatusHandler)
		r.Get("/events", s.eventsHandler)
	})
}
